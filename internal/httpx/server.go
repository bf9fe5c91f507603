// path: fairy_chess/internal/httpx/server.go
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fairy_chess/internal/catalog"
	"fairy_chess/internal/game"
	"fairy_chess/internal/metrics"
	"fairy_chess/internal/shared"
)

// Server wires the HTTP and websocket layers to the game engine.
type Server struct {
	engine  *game.Engine
	catalog *catalog.Catalog
	metrics *metrics.Recorder
	hub     *hub
	log     *zap.Logger
	srvMu   sync.Mutex
	srv     *http.Server
	closed  bool
}

const (
	maxJSONBodyBytes int64 = 1 << 20
	apiCSP                 = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	playerHeader           = "X-Player"

	// nginx's code for a client that went away before the response.
	statusClientClosedRequest = 499
	retryAfterSeconds         = "5"
)

// Config wires a Server. Metrics and Logger are optional.
type Config struct {
	Engine  *game.Engine
	Catalog *catalog.Catalog
	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	s := &Server{
		engine:  cfg.Engine,
		catalog: cfg.Catalog,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
	s.hub = newHub(s.engine, s.metrics, s.log)
	return s
}

// Listen starts the HTTP server and blocks until it is closed.
func (s *Server) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	s.srvMu.Lock()
	if s.closed {
		s.srvMu.Unlock()
		return nil
	}
	s.srv = srv
	s.srvMu.Unlock()
	defer func() {
		s.srvMu.Lock()
		s.srv = nil
		s.srvMu.Unlock()
	}()

	s.log.Info("http listening", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts the HTTP server down gracefully and drops every socket. A Listen
// that has not started yet returns at once.
func (s *Server) Close(ctx context.Context) error {
	s.hub.closeAll()
	s.srvMu.Lock()
	s.closed = true
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler routes the JSON API, the game websocket, /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/setups", s.withJSON(s.handleSetups))
	mux.HandleFunc("GET /api/pieces", s.withJSON(s.handlePieces))
	mux.HandleFunc("GET /api/moves", s.withJSON(s.handleMoves))

	mux.HandleFunc("POST /api/games", s.withJSON(s.handleCreate))
	mux.HandleFunc("GET /api/games/{id}", s.withJSON(s.handleState))
	mux.HandleFunc("POST /api/games/{id}/move", s.withJSON(s.handleMove))
	mux.HandleFunc("POST /api/games/{id}/resign", s.withJSON(s.handleResign))
	mux.HandleFunc("POST /api/games/{id}/draw", s.withJSON(s.handleDraw))
	mux.HandleFunc("GET /api/games/{id}/targets", s.withJSON(s.handleTargets))

	mux.HandleFunc("GET /ws/games/{id}", s.hub.serve)

	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ---- JSON helpers ----

func (s *Server) withJSON(h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applyAPISecurityHeaders(w.Header())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": msg})
}

// writeFailure reports an engine error with a status derived from its class.
func writeFailure(w http.ResponseWriter, err error) {
	class := shared.Classify(err)
	if shared.Retryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	w.WriteHeader(statusFor(err))
	writeJSON(w, map[string]string{"error": err.Error(), "class": class})
}

func statusFor(err error) int {
	if errors.Is(err, game.ErrGameNotFound) || errors.Is(err, catalog.ErrUnknownSetup) {
		return http.StatusNotFound
	}
	switch shared.Classify(err) {
	case shared.ClassAuthorization:
		return http.StatusForbidden
	case shared.ClassIllegalMove, shared.ClassTimeout, shared.ClassCompile:
		return http.StatusUnprocessableEntity
	case shared.ClassDependency:
		return http.StatusServiceUnavailable
	case shared.ClassProtocol:
		return http.StatusBadRequest
	case shared.ClassAborted:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func applyAPISecurityHeaders(h http.Header) {
	h.Set("Content-Security-Policy", apiCSP)
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Embedder-Policy", "require-corp")
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func player(r *http.Request) string {
	if p := strings.TrimSpace(r.Header.Get(playerHeader)); p != "" {
		return p
	}
	return strings.TrimSpace(r.URL.Query().Get("player"))
}

// ---- API: catalog ----

func (s *Server) handleSetups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"setups": s.catalog.Setups})
}

func (s *Server) handlePieces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"pieces": s.catalog.Pieces})
}

func (s *Server) handleMoves(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"moves": s.catalog.Moves})
}

// ---- API: games ----

type createBody struct {
	Setup string `json:"setup"`
	White string `json:"white"`
	Black string `json:"black"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if !decodeBody(w, r, &body) {
		return
	}
	setup, err := s.catalog.Setup(body.Setup)
	if err != nil {
		writeFailure(w, err)
		return
	}
	snap, err := s.engine.Create(setup, strings.TrimSpace(body.White), strings.TrimSpace(body.Black))
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.metrics.SetGames(s.engine.Len())
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, snap)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.State(r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, snap)
}

// moveBody carries [row, col] pairs.
type moveBody struct {
	From [2]int `json:"from_loc"`
	To   [2]int `json:"to_loc"`
}

func (b moveBody) locations() (shared.Location, shared.Location) {
	return shared.Loc(b.From[0], b.From[1]), shared.Loc(b.To[0], b.To[1])
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var body moveBody
	if !decodeBody(w, r, &body) {
		return
	}
	id := r.PathValue("id")
	from, to := body.locations()
	snap, err := s.engine.MakeMove(r.Context(), id, from, to, player(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.broadcast(id, eventBoardUpdate, snap)
	writeJSON(w, snap)
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.engine.Resign(id, player(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.broadcast(id, eventAgreement, snap)
	writeJSON(w, snap)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.engine.Draw(id, player(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.broadcast(id, eventAgreement, snap)
	writeJSON(w, snap)
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	from, err := shared.ParseLocation(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from location")
		return
	}
	targets, err := s.engine.LegalTargets(r.Context(), r.PathValue("id"), from, player(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([][2]int, 0, len(targets))
	for _, t := range targets {
		out = append(out, [2]int{t.Row, t.Col})
	}
	writeJSON(w, map[string]any{"from": [2]int{from.Row, from.Col}, "targets": out})
}
