package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"tradearena/internal/app"
	"tradearena/internal/domain"
	"tradearena/internal/ports"
	"tradearena/internal/tournament"
)

const (
	// Per-IP limits on the trade endpoints. Ticks arrive every 1.5s, so a
	// human clicking fast stays well inside this.
	tradeRateLimit rate.Limit = 5
	tradeRateBurst            = 10

	clientSendBuffer = 16
	writeTimeout     = 5 * time.Second
)

// Server is the synchronous boundary the presentation layer talks to: JSON
// endpoints for snapshots and trade actions, and a websocket that pushes a
// fresh frame after every tick.
type Server struct {
	svc    *app.RoundService
	lobby  *tournament.Lobby
	repo   ports.RoundRepository
	logger ports.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	limiters sync.Map // remote IP -> *rate.Limiter

	srv *http.Server
}

type client struct {
	conn *websocket.Conn
	send chan app.Frame
}

// NewServer wires the server to a round service and registers for tick
// updates.
func NewServer(svc *app.RoundService, lobby *tournament.Lobby, repo ports.RoundRepository, logger ports.Logger) *Server {
	s := &Server{
		svc:     svc,
		lobby:   lobby,
		repo:    repo,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is served from arbitrary dev origins; state is per-session
			// and virtual, so origin checking is intentionally permissive.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	svc.OnUpdate(s.broadcast)
	return s
}

// Handler returns the routed HTTP handler, exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/api/rooms", s.handleRooms)
	mux.HandleFunc("/api/rooms/join", s.handleJoin)
	mux.HandleFunc("/api/rooms/leave", s.handleLeave)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/trade", s.rateLimited(s.handleTrade))
	mux.HandleFunc("/api/close", s.rateLimited(s.handleClose))
	mux.HandleFunc("/ws", s.handleWS)
	return corsMiddleware(mux)
}

// Start runs the HTTP server until the context is canceled.
func (s *Server) Start(ctx context.Context, port string) error {
	s.srv = &http.Server{Addr: ":" + port, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()
	s.logger.Info(ctx, "API server listening", map[string]interface{}{"port": port})

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited applies the per-IP trade limiter to a handler.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(remoteIP(r)).Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	if l, ok := s.limiters.Load(ip); ok {
		return l.(*rate.Limiter)
	}
	l, _ := s.limiters.LoadOrStore(ip, rate.NewLimiter(tradeRateLimit, tradeRateBurst))
	return l.(*rate.Limiter)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Snapshot().Leaderboard)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.lobby.Rooms())
}

type roomRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	room, err := s.lobby.Join(req.ID)
	if err != nil {
		http.Error(w, err.Error(), lobbyStatus(err))
		return
	}
	s.writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.lobby.Leave(req.ID); err != nil {
		http.Error(w, err.Error(), lobbyStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func lobbyStatus(err error) int {
	switch err {
	case ports.ErrNotFound:
		return http.StatusNotFound
	case ports.ErrRoomFull, ports.ErrRoomInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type historyResponse struct {
	Rounds   []*domain.RoundResult `json:"rounds"`
	TotalPnL float64               `json:"totalPnL"` // lifetime, across all archived rounds
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	results, err := s.repo.FindRecent(r.Context(), 20)
	if err != nil {
		s.logger.Error(r.Context(), err, "Failed to load round history")
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	total, err := s.repo.TotalPnL(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), err, "Failed to total round history")
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, historyResponse{Rounds: results, TotalPnL: total})
}

type tradeRequest struct {
	Side   string  `json:"side"`
	Margin float64 `json:"margin"`
}

type tradeResponse struct {
	Result domain.TradeResult `json:"result"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Side validation is the engine's job; anything unknown comes back as a
	// rejection result.
	res := s.svc.Trade(r.Context(), domain.PositionType(req.Side), req.Margin)
	s.writeJSON(w, http.StatusOK, tradeResponse{Result: res})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res := s.svc.ClosePosition(r.Context())
	s.writeJSON(w, http.StatusOK, tradeResponse{Result: res})
}

// --- Websocket push ---

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "Websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &client{conn: conn, send: make(chan app.Frame, clientSendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	// Seed the connection with the current frame so the UI renders
	// immediately instead of waiting for the next tick.
	c.send <- s.svc.Snapshot()

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) writePump(c *client) {
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(frame); err != nil {
			s.drop(c)
			return
		}
	}
	c.conn.Close()
}

// readPump discards inbound messages; it exists to detect the peer closing.
func (s *Server) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.drop(c)
			return
		}
	}
}

// broadcast fans a frame out to every connected client. Slow clients with a
// full buffer are dropped rather than allowed to stall the tick loop.
func (s *Server) broadcast(frame app.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
			delete(s.clients, c)
			close(c.send)
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	c.conn.Close()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error(context.Background(), err, "Failed to encode JSON response")
	}
}
