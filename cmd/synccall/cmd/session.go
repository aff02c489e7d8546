package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/call"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/config"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/gateway"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/logging"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/media"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/ui"
)

// connectTimeout bounds how long we wait for the server to assign us a
// session after the websocket is up.
const connectTimeout = 15 * time.Second

type ConnectionContext struct {
	Client  *gateway.Client
	Handler *gateway.Handler
	Config  *config.Config
	Engine  *media.Engine
	Orc     *call.Orchestrator
	Self    call.Identity
	Log     zerolog.Logger
}

// NewConnectionContext dials the signaling server, waits for our
// assigned identity and wires the call core around the connection.
func NewConnectionContext(cfg *config.Config) (*ConnectionContext, error) {
	log := logging.New(zerolog.ErrorLevel)

	client := gateway.NewClient(cfg.WebSocketURL, cfg.Token)
	if err := client.Connect(); err != nil {
		return nil, call.NewError("connect to server", err)
	}

	handler := gateway.NewHandler(client)
	go handler.Start()

	self, err := awaitIdentity(handler)
	if err != nil {
		client.Close()
		return nil, err
	}

	engine, err := media.NewEngine(iceServers(cfg), cfg.ForceRelay, log)
	if err != nil {
		client.Close()
		return nil, call.NewError("init webrtc", err)
	}

	orc := call.NewOrchestrator(handler, client.SendMessage, engine, engine, self, log)

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
		Engine:  engine,
		Orc:     orc,
		Self:    self,
		Log:     log,
	}, nil
}

func awaitIdentity(handler *gateway.Handler) (call.Identity, error) {
	select {
	case ci, ok := <-handler.Connected:
		if !ok {
			return call.Identity{}, call.WrapError("identify", call.ErrSignalingError, "connection closed")
		}
		return call.Identity{SessionID: ci.SessionID, UserID: ci.UserID}, nil
	case errMsg := <-handler.Errors:
		return call.Identity{}, call.WrapError("identify", call.ErrSignalingError, errMsg.Message)
	case <-time.After(connectTimeout):
		return call.Identity{}, call.WrapError("identify", call.ErrTimeout, "server did not confirm the connection")
	}
}

func (c *ConnectionContext) Close() {
	if c.Orc != nil {
		c.Orc.Leave()
	}
	// Closing the client ends the read pump, which closes the incoming
	// stream; the handler drains it and closes its own channels.
	if c.Client != nil {
		c.Client.Close()
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, call.NewError("load config", err)
	}
	return cfg, nil
}

func iceServers(cfg *config.Config) []webrtc.ICEServer {
	servers := []webrtc.ICEServer{
		{URLs: []string{cfg.STUNServer}},
	}
	if cfg.TURNServer != "" {
		user, pass := cfg.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs: []string{
				fmt.Sprintf("%s:3478?transport=udp", cfg.TURNServer),
				fmt.Sprintf("%s:3478?transport=tcp", cfg.TURNServer),
			},
			Username:   user,
			Credential: pass,
		})
	}
	return servers
}

// runCall drives the live in-call view until the user leaves or the
// call ends, then prints the summary.
func runCall(cc *ConnectionContext, callID, groupID string) error {
	started := time.Now()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cc.Orc.Run(runCtx)

	model := ui.NewCallModel(cc.Orc, callID, groupID, cc.Orc.Roster(), cc.Orc.MediaStateNow())
	if err := ui.RunCallView(model); err != nil {
		return call.NewError("run call view", err)
	}

	fmt.Println()
	ui.RenderCallSummary(ui.CallSummary{
		CallID:   callID,
		GroupID:  groupID,
		Peers:    model.PeerCount(),
		Duration: time.Since(started).Truncate(time.Second).String(),
		Reason:   model.EndReason(),
	})

	return nil
}
