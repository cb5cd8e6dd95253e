package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/api"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/call"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/chat"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/config"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/media"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/p2p"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/proto"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/state"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/storage"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/util"
)

// Options carries everything Run needs from the command line.
type Options struct {
	DataDir string
	CfgPath string
	Cfg     config.Config
}

// Run starts the peer and blocks until ctx is cancelled.
func Run(ctx context.Context, opt Options) error {
	cfg := opt.Cfg

	selfLabel := func() string {
		if cfg.Profile.Label != "" {
			return cfg.Profile.Label
		}
		return "anonymous"
	}

	peers := state.NewPeerTable()

	keyPath := util.ResolvePath(opt.DataDir, cfg.Identity.KeyFile)
	node, err := p2p.New(ctx, cfg.P2P.ListenPort, keyPath, cfg.P2P.MdnsTag, cfg.Presence.Topic, peers, selfLabel)
	if err != nil {
		return err
	}
	defer node.Close()
	log.Printf("peer id: %s", node.ID())

	dbPath := util.ResolvePath(opt.DataDir, cfg.Storage.DBPath)
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// ── Chat
	chatMgr := chat.New(node.Host, db, chat.DefaultBufferSize)
	defer chatMgr.Close()
	log.Printf("CHAT: direct messaging enabled via %s", proto.ChatProtoID)

	// ── Call signaling and media
	transport, err := node.NewSignalTransport(ctx)
	if err != nil {
		return err
	}

	src, err := mediaSource(cfg)
	if err != nil {
		return err
	}
	mediaMgr := media.NewManager(src)

	callMgr := call.NewManager(
		node.ID(),
		transport,
		mediaMgr,
		peers,
		call.NewPionFactory(mediaMgr, cfg.Call.ICEServers),
		time.Duration(cfg.Call.SignalingTimeoutSec)*time.Second,
	)
	defer callMgr.Close()

	// ── Local HTTP API
	srv := api.New(cfg.API.HTTPAddr, api.Deps{
		SelfID:    node.ID(),
		SelfLabel: selfLabel,
		Peers:     peers,
		Calls:     callMgr,
		Chat:      chatMgr,
	})
	srv.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), util.ShortTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	// ── Presence
	node.RunPresenceLoop(ctx, func(m proto.PresenceMsg) {
		log.Printf("PRESENCE: [%s] %s %q", m.Type, m.PeerID, m.Label)
	})
	node.Publish(ctx, proto.TypeOnline)

	go func() {
		t := time.NewTicker(time.Duration(cfg.Presence.HeartbeatSec) * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				node.Publish(ctx, proto.TypeUpdate)
			}
		}
	}()

	go func() {
		ttl := time.Duration(cfg.Presence.TTLSec) * time.Second
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				now := time.Now()
				peers.PruneStale(now.Add(-ttl), now.Add(-3*ttl))
			}
		}
	}()

	<-ctx.Done()

	// Hang up before announcing departure so the remote gets the call-end
	// before the presence table drops us.
	callMgr.EndCall()
	offCtx, cancel := context.WithTimeout(context.Background(), util.ShortTimeout)
	defer cancel()
	node.Publish(offCtx, proto.TypeOffline)
	return nil
}

func mediaSource(cfg config.Config) (media.Source, error) {
	if cfg.Call.DisableMedia {
		log.Printf("MEDIA: local capture disabled, calls are receive-only")
		return media.NewNullSource(), nil
	}
	src, err := media.NewDeviceSource()
	if err != nil {
		return nil, fmt.Errorf("init capture source: %w", err)
	}
	return src, nil
}
