// Package gateway is the WebSocket transport: it upgrades connections,
// enforces the identity handshake, pumps messages, and hands inbound events
// to the dispatcher.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/stakemate/chess-server/internal/leaderboard"
	"github.com/stakemate/chess-server/internal/obslog"
	"github.com/stakemate/chess-server/pkg/gamedto"
)

const pingInterval = 15 * time.Second

type Server struct {
	dispatcher *Dispatcher
	hub        *Hub
	board      *leaderboard.Board
	origins    []string
}

type ServerOption func(*Server)

// WithOriginPatterns restricts which browser origins may connect.
func WithOriginPatterns(patterns []string) ServerOption {
	return func(s *Server) { s.origins = patterns }
}

// WithBoard exposes the leaderboard over the read-only HTTP endpoint.
func WithBoard(b *leaderboard.Board) ServerOption {
	return func(s *Server) { s.board = b }
}

func NewServer(d *Dispatcher, hub *Hub, opts ...ServerOption) *Server {
	s := &Server{dispatcher: d, hub: hub}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/leaderboard", s.serveLeaderboard)
	return mux
}

// serveWS runs the connection lifecycle: identity handshake, upgrade, write
// pump, then the read loop until the peer goes away. Disconnect is
// non-destructive — the match and registry entry survive so the player can
// reconnect and resynchronize.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	player, ok := identityFrom(r)
	if !ok {
		http.Error(w, "address and username query parameters are required", http.StatusUnauthorized)
		return
	}
	if earned, err := s.board.Earnings(r.Context(), player.Address); err == nil {
		player.Earnings = strconv.FormatFloat(earned, 'f', -1, 64)
	} else {
		obslog.L().Warn("earnings_lookup_error", zap.String("address", player.Address), zap.Error(err))
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	sess := newSession(player)
	obslog.L().Info("ws_connect",
		zap.String("session_id", sess.id),
		zap.String("address", player.Address),
		zap.String("username", player.Username),
	)

	ctx := r.Context()
	go s.writePump(ctx, conn, sess)

	for {
		var env gamedto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			break
		}
		s.dispatcher.Dispatch(ctx, sess, env)
	}

	s.hub.Drop(sess)
	sess.close()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("ws_disconnect", zap.String("session_id", sess.id))
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, sess *session) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.closed:
			return
		case env := <-sess.send:
			if err := wsjson.Write(ctx, conn, env); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (s *Server) serveLeaderboard(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			n = parsed
		}
	}
	entries, err := s.board.Top(r.Context(), n)
	if err != nil {
		obslog.L().Error("leaderboard_read_error", zap.Error(err))
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// identityFrom reads the handshake identity. A connection lacking address or
// username is refused before any event is processed.
func identityFrom(r *http.Request) (gamedto.Player, bool) {
	q := r.URL.Query()
	address := strings.ToLower(strings.TrimSpace(q.Get("address")))
	username := strings.TrimSpace(q.Get("username"))
	if address == "" || username == "" {
		return gamedto.Player{}, false
	}
	return gamedto.Player{Address: address, Username: username, Earnings: "0"}, true
}
