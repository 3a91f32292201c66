// Package status serves a small read-only HTTP view of the bot: liveness of
// the audio backend, live queues and recent track history.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/music/backend"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/storage"
)

// Source is the playback state the server reports on.
type Source interface {
	Ready() bool
	SessionCount() int
	Queue(guildID string) (player.QueueView, error)
}

// History returns recently played tracks for a guild.
type History interface {
	Tracks(guildID string) ([]storage.TrackRecord, error)
}

type Server struct {
	src     Source
	history History
	log     *zap.Logger
	srv     *http.Server
}

func New(addr string, src Source, history History, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{src: src, history: history, log: log.Named("status")}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routes without a listener, for tests and embedding.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/guilds/{guildID}/queue", s.handleQueue).Methods(http.MethodGet)
	router.HandleFunc("/guilds/{guildID}/history", s.handleHistory).Methods(http.MethodGet)
	return router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(sctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("took", time.Since(start)))
	})
}

type healthResponse struct {
	Status       string `json:"status"`
	BackendReady bool   `json:"backend_ready"`
	Sessions     int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "ok",
		BackendReady: s.src.Ready(),
		Sessions:     s.src.SessionCount(),
	}
	code := http.StatusOK
	if !resp.BackendReady {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

type trackJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	URI       string `json:"uri,omitempty"`
	LengthMS  int64  `json:"length_ms"`
	Requester string `json:"requester,omitempty"`
	Auto      bool   `json:"auto,omitempty"`
}

type queueResponse struct {
	Current  *trackJSON  `json:"current,omitempty"`
	Upcoming []trackJSON `json:"upcoming"`
	More     int         `json:"more"`
}

func toJSON(t backend.Track) trackJSON {
	return trackJSON{
		ID:        t.ID,
		Title:     t.Title,
		Author:    t.Author,
		URI:       t.URI,
		LengthMS:  t.Length.Milliseconds(),
		Requester: t.Requester,
	}
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildID"]
	view, err := s.src.Queue(guildID)
	if errors.Is(err, player.ErrQueueEmpty) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "queue is empty"})
		return
	}
	if err != nil {
		s.log.Error("queue lookup failed", zap.String("guild", guildID), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	resp := queueResponse{Upcoming: make([]trackJSON, 0, len(view.Upcoming)), More: view.More}
	if view.Current != nil {
		cur := toJSON(*view.Current)
		resp.Current = &cur
	}
	for _, e := range view.Upcoming {
		t := toJSON(e.Track)
		t.Auto = e.Auto
		resp.Upcoming = append(resp.Upcoming, t)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildID"]
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, []storage.TrackRecord{})
		return
	}
	tracks, err := s.history.Tracks(guildID)
	if err != nil {
		s.log.Error("history lookup failed", zap.String("guild", guildID), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if tracks == nil {
		tracks = []storage.TrackRecord{}
	}
	s.writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", zap.Error(err))
	}
}
