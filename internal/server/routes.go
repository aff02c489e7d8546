package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/auth"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/signaling"
)

// Configure the websocket upgrader. Buffers sized for SDP payloads.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The webapp and native clients connect from their own origins; origin
	// enforcement belongs to the fronting proxy in production.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server wires the signaling hub to HTTP.
type Server struct {
	hub      *signaling.Hub
	verifier *auth.Verifier
	ids      *signaling.SessionIDs
	log      zerolog.Logger
}

func New(hub *signaling.Hub, verifier *auth.Verifier, log zerolog.Logger) *Server {
	return &Server{
		hub:      hub,
		verifier: verifier,
		ids:      &signaling.SessionIDs{},
		log:      log,
	}
}

// Router returns the HTTP handler for the signaling service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// handleWS authenticates the connect-time token, upgrades the connection
// and assigns the session its identity. The identity service issued the
// token; the claims inside are trusted from here on.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}

	claims, err := s.verifier.Verify(token, time.Now())
	if err != nil {
		s.log.Warn().Err(err).Msg("rejected websocket connect")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := signaling.NewClient(s.hub, conn, s.ids.Next(), claims.UserID, s.log)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
