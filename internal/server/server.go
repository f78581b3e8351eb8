// Package server exposes sessions over HTTP and streams found-quantity changes
// to every collaborator of a session over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/h0rv/brickhunt/internal/api"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/ledger"
	"github.com/h0rv/brickhunt/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + writeWait
)

// ManifestProvider turns a set number into a set manifest.
type ManifestProvider interface {
	Fetch(ctx context.Context, setNum string) (domain.Manifest, error)
}

// Server handles the HTTP API.
type Server struct {
	store     *store.Store
	provider  ManifestProvider
	hub       *Hub
	metrics   *metrics
	logger    *slog.Logger
	publicURL string
	router    *mux.Router
	upgrader  websocket.Upgrader

	// writeMu orders store writes with their broadcasts, so subscribers see
	// the values of one item in commit order.
	writeMu sync.Mutex
}

// New creates a server. publicURL is the externally reachable base URL used
// in share links.
func New(st *store.Store, provider ManifestProvider, logger *slog.Logger, publicURL string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hub := NewHub(logger)
	s := &Server{
		store:     st,
		provider:  provider,
		hub:       hub,
		metrics:   newMetrics(hub),
		logger:    logger,
		publicURL: strings.TrimRight(publicURL, "/"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Capability tokens are the only authorization; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the broadcast hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close drops every realtime subscriber.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.metrics.observe(request, m.Code, m.Duration)
			s.logger.Info("handled", "method", request.Method, "path", redactPath(request.URL.Path), "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path(api.HealthcheckPath).HandlerFunc(s.healthcheck)
	r.Methods(http.MethodGet).Path(MetricsPath).Handler(s.metrics.handler())
	r.Methods(http.MethodPost).Path(api.SessionsPath).HandlerFunc(s.createSession)
	r.Methods(http.MethodGet).Path(api.SessionsPath + "/{token}").HandlerFunc(s.getSession)
	r.Methods(http.MethodPost).Path(api.SessionsPath + "/{token}/items/{id:[0-9]+}/found").HandlerFunc(s.updateFound)
	r.Methods(http.MethodPost).Path(api.SessionsPath + "/{token}/reset").HandlerFunc(s.resetAll)
	r.Methods(http.MethodGet).Path(api.SessionsPath + "/{token}/events").HandlerFunc(s.events)
	return r
}

// ShareURL returns the link that opens a session.
func (s *Server) ShareURL(token string) string {
	return s.publicURL + api.SessionsPath + "/" + token
}

func (s *Server) healthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &domain.ValidationError{Index: -1, Field: "body", Reason: err.Error()})
		return
	}
	if strings.TrimSpace(req.SetNum) == "" {
		s.writeError(w, &domain.ValidationError{Index: -1, Field: "set_num", Reason: "must not be empty"})
		return
	}

	manifest, err := s.provider.Fetch(r.Context(), req.SetNum)
	if err != nil {
		s.writeError(w, err)
		return
	}

	l, err := ledger.BuildFromManifest(manifest.Entries)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sess, err := s.store.CreateSession(r.Context(), manifest.Set, l.Items())
	if err != nil {
		s.writeError(w, &domain.PersistenceError{Op: "create session", Err: err})
		return
	}

	s.metrics.sessions.Inc()
	s.logger.Info("session opened", "session", shortToken(sess.Token), "set", sess.Set.SetNum, "items", l.Len())
	writeJSON(w, http.StatusCreated, api.CreateSessionResponse{
		Token:    sess.Token,
		Session:  api.FromSession(sess),
		ShareURL: s.ShareURL(sess.Token),
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, items, err := s.store.LoadSession(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SessionResponse{
		Session: api.FromSession(sess),
		Items:   api.FromItems(items),
	})
}

func (s *Server) updateFound(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := vars["token"]
	itemID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		s.writeError(w, &domain.ValidationError{Index: -1, Field: "id", Reason: err.Error()})
		return
	}

	var req api.UpdateFoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &domain.ValidationError{Index: -1, Field: "body", Reason: err.Error()})
		return
	}

	s.writeMu.Lock()
	found, err := s.store.UpdateFound(r.Context(), token, itemID, req.Delta)
	if err == nil {
		s.hub.Broadcast(token, domain.Notification{ItemID: itemID, QtyFound: found})
	}
	s.writeMu.Unlock()

	if err != nil {
		s.metrics.updates.WithLabelValues("failed").Inc()
		s.writeError(w, err)
		return
	}
	s.metrics.updates.WithLabelValues("applied").Inc()
	writeJSON(w, http.StatusOK, domain.Notification{ItemID: itemID, QtyFound: found})
}

func (s *Server) resetAll(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	s.writeMu.Lock()
	changed, err := s.store.ResetAll(r.Context(), token)
	if err == nil {
		for _, id := range changed {
			s.hub.Broadcast(token, domain.Notification{ItemID: id, QtyFound: 0})
		}
	}
	s.writeMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.resets.Inc()
	s.logger.Info("session reset", "session", shortToken(token), "changed", len(changed))
	w.WriteHeader(http.StatusNoContent)
}

// events upgrades to a websocket and streams the session's notifications as JSON
// text messages. One goroutine writes; the handler goroutine reads and discards
// client frames to notice disconnects.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if err := s.store.SessionExists(r.Context(), token); err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(token)
	defer s.hub.Unsubscribe(token, sub)
	logger := s.logger.With("session", shortToken(token))
	logger.Info("subscriber connected", "subscribers", s.hub.Count(token))

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer conn.Close()
		s.writeLoop(conn, sub, logger)
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("subscriber read failed", "err", err)
			}
			break
		}
	}

	s.hub.Unsubscribe(token, sub)
	wg.Wait()
	logger.Info("subscriber disconnected")
}

func (s *Server) writeLoop(conn *websocket.Conn, sub *Subscriber, logger *slog.Logger) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case n, ok := <-sub.Notifications():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				logger.Warn("failed to write notification", "err", err)
				return
			}
		case <-t.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		vErr *domain.ValidationError
		pErr *domain.ProviderError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, store.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.As(err, &pErr):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// redactPath keeps capability tokens out of access logs.
func redactPath(path string) string {
	rest, ok := strings.CutPrefix(path, api.SessionsPath+"/")
	if !ok {
		return path
	}
	token, tail, _ := strings.Cut(rest, "/")
	if tail != "" {
		tail = "/" + tail
	}
	return api.SessionsPath + "/" + shortToken(token) + tail
}
