package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Identity Identity `json:"identity"`
	P2P      P2P      `json:"p2p"`
	Presence Presence `json:"presence"`
	Call     Call     `json:"call"`
	Storage  Storage  `json:"storage"`
	API      API      `json:"api"`
	Profile  Profile  `json:"profile"`
}

type Identity struct {
	KeyFile string `json:"key_file"`
}

type P2P struct {
	ListenPort int    `json:"listen_port"`
	MdnsTag    string `json:"mdns_tag"`
}

type Presence struct {
	Topic        string `json:"topic"`
	TTLSec       int    `json:"ttl_seconds"`
	HeartbeatSec int    `json:"heartbeat_seconds"`
}

type Call struct {
	// Seconds a caller waits for an answer before the attempt fails.
	SignalingTimeoutSec int `json:"signaling_timeout_seconds"`

	// STUN/TURN server URLs handed to the peer connection.
	ICEServers []string `json:"ice_servers"`

	// Disable local capture entirely (calls become receive-only).
	DisableMedia bool `json:"disable_media"`
}

type Storage struct {
	// SQLite database path for chat messages. Relative to the data dir.
	DBPath string `json:"db_path"`
}

type API struct {
	HTTPAddr string `json:"http_addr"`
}

type Profile struct {
	Label string `json:"label"`
}

func Default() Config {
	return Config{
		Identity: Identity{
			KeyFile: "data/identity.key",
		},
		P2P: P2P{
			ListenPort: 0,
			MdnsTag:    "chatapp-mdns",
		},
		Presence: Presence{
			Topic:        "chatapp.presence.v1",
			TTLSec:       20,
			HeartbeatSec: 5,
		},
		Call: Call{
			SignalingTimeoutSec: 30,
			ICEServers:          []string{"stun:stun.l.google.com:19302"},
		},
		Storage: Storage{
			DBPath: "data/messages.db",
		},
		API: API{
			HTTPAddr: "127.0.0.1:8585",
		},
		Profile: Profile{
			Label: "hello",
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Identity.KeyFile) == "" {
		return errors.New("identity.key_file is required")
	}
	if c.P2P.ListenPort < 0 || c.P2P.ListenPort > 65535 {
		return fmt.Errorf("p2p.listen_port out of range: %d", c.P2P.ListenPort)
	}
	if strings.TrimSpace(c.Presence.Topic) == "" {
		return errors.New("presence.topic is required")
	}
	if c.Presence.TTLSec <= 0 {
		return errors.New("presence.ttl_seconds must be > 0")
	}
	if c.Presence.HeartbeatSec <= 0 {
		return errors.New("presence.heartbeat_seconds must be > 0")
	}
	if c.Presence.HeartbeatSec >= c.Presence.TTLSec {
		return fmt.Errorf("presence.heartbeat_seconds (%d) must be smaller than presence.ttl_seconds (%d)",
			c.Presence.HeartbeatSec, c.Presence.TTLSec)
	}
	if c.Call.SignalingTimeoutSec <= 0 {
		return errors.New("call.signaling_timeout_seconds must be > 0")
	}
	for _, u := range c.Call.ICEServers {
		if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "turn:") && !strings.HasPrefix(u, "turns:") {
			return fmt.Errorf("call.ice_servers entry %q must start with stun:, turn: or turns:", u)
		}
	}
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		return errors.New("storage.db_path is required")
	}
	if strings.TrimSpace(c.API.HTTPAddr) == "" {
		return errors.New("api.http_addr is required")
	}
	return nil
}

// Load reads and validates a config file. Unknown fields are ignored so old
// binaries keep working against newer config files.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(stripBOM(b), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}

func Save(path string, cfg Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// Ensure loads the config at path, writing defaults first if it is missing.
// The bool reports whether a new file was created.
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	}
	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}
