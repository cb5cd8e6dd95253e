package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/app"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/config"
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

var (
	dataDir  = flag.String("dir", ".", "Data directory (identity key, config, message store)")
	cfgFile  = flag.String("config", "config.json", "Config file path, relative to -dir")
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *showHelp {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(appVersion)
		return
	}

	dir, err := filepath.Abs(*dataDir)
	if err != nil {
		log.Fatalf("resolve data dir: %v", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	cfgPath := *cfgFile
	if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(dir, cfgPath)
	}
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if created {
		log.Printf("wrote default config: %s", cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Options{
		DataDir: dir,
		CfgPath: cfgPath,
		Cfg:     cfg,
	}); err != nil {
		log.Fatalf("run: %v", err)
	}
}
