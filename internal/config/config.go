package config

import (
	"fmt"
	"os"
)

// Default configuration values (production)
const (
	DefaultDomain = "sync.thesis-sync.app"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
	DefaultTURN   = ""
)

// Config holds application configuration
type Config struct {
	// Domain is the signaling server domain
	Domain string

	// WebSocketURL is constructed from domain
	WebSocketURL string

	// Token authenticates the websocket connection
	Token string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN relays only
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Token      string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("SYNCCALL_DOMAIN"), DefaultDomain)
	token := firstNonEmpty(opts.Token, os.Getenv("SYNCCALL_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("no auth token: pass --token or set SYNCCALL_TOKEN")
	}

	stunServer := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"))
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"))

	forceRelay := opts.ForceRelay
	if !forceRelay && os.Getenv("FORCE_RELAY") == "1" {
		forceRelay = true
	}
	if forceRelay && turnServer == "" {
		return nil, fmt.Errorf("force-relay requires a TURN server")
	}

	return &Config{
		Domain:       domain,
		WebSocketURL: fmt.Sprintf("wss://%s/ws", domain),
		Token:        token,
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		ForceRelay:   forceRelay,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetICEServers returns the STUN/TURN server URLs for peer connections.
func (c *Config) GetICEServers() []string {
	servers := []string{c.STUNServer}
	if c.TURNServer != "" {
		servers = append(servers,
			fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
			fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		)
	}
	return servers
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
