package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/notabene00/yandex-weather/internal/config"
	"github.com/notabene00/yandex-weather/internal/flow"
	"github.com/notabene00/yandex-weather/internal/integration"
	"github.com/notabene00/yandex-weather/internal/models"
	"github.com/notabene00/yandex-weather/internal/store"
	"github.com/notabene00/yandex-weather/internal/weather"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const maskValue = "********"

// EntryManager is the part of the integration manager the API drives.
type EntryManager interface {
	Sync(ctx context.Context) error
	Entity(entryID string) (*weather.Entity, bool)
	Refresh(ctx context.Context, entryID string) (weather.State, error)
}

type Server struct {
	server   *http.Server
	router   *mux.Router
	upgrader websocket.Upgrader
	hub      *Hub
	flow     *flow.Flow
	manager  EntryManager
	store    store.Store
	config   *config.Config
	logger   *logrus.Logger
}

// EntryView is an entry as returned by the API, with the API key masked.
type EntryView struct {
	ID        string    `json:"entry_id"`
	UniqueID  string    `json:"unique_id"`
	Title     string    `json:"title"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Version   int       `json:"version"`
	Loaded    bool      `json:"loaded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewServer(cfg *config.Config, fl *flow.Flow, manager EntryManager, st store.Store, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		flow:    fl,
		manager: manager,
		store:   st,
		config:  cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/flow/user", s.handleUserForm).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.handleListEntries).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.handleCreateEntry).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id}", s.handleGetEntry).Methods(http.MethodGet)
	api.HandleFunc("/entries/{id}", s.handleDeleteEntry).Methods(http.MethodDelete)
	api.HandleFunc("/entries/{id}/options", s.handleOptionsForm).Methods(http.MethodGet)
	api.HandleFunc("/entries/{id}/options", s.handleUpdateOptions).Methods(http.MethodPut)
	api.HandleFunc("/entries/{id}/weather", s.handleWeather).Methods(http.MethodGet)
	api.HandleFunc("/entries/{id}/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting API server on %s", addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down API server...")
		s.server.Close()
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func (s *Server) Stop() {
	if s.server != nil {
		s.logger.Info("Stopping API server")
		s.server.Close()
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUserForm(w http.ResponseWriter, r *http.Request) {
	result, err := s.flow.StepUser(r.Context(), nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListEntries(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, s.view(entry))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var input flow.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	result, err := s.flow.StepUser(r.Context(), &input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sync(r.Context())
	writeJSON(w, http.StatusCreated, s.view(*result.Entry))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetEntry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.flow.RemoveEntry(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.sync(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOptionsForm(w http.ResponseWriter, r *http.Request) {
	result, err := s.flow.StepInit(r.Context(), mux.Vars(r)["id"], nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	for i, field := range result.Form.Fields {
		if field.Name == flow.FieldAPIKey && field.Default != nil {
			result.Form.Fields[i].Default = maskValue
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	var input flow.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	result, err := s.flow.StepInit(r.Context(), mux.Vars(r)["id"], &input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sync(r.Context())
	writeJSON(w, http.StatusOK, s.view(*result.Entry))
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entity, ok := s.manager.Entity(id)
	if !ok {
		s.writeError(w, fmt.Errorf("%s: %w", id, integration.ErrNotLoaded))
		return
	}
	writeJSON(w, http.StatusOK, entity.State())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Refresh(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, integration.ErrNotLoaded) {
		s.writeError(w, err)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.GetEntry(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	readings, err := s.store.ListReadings(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	s.hub.serve(conn)
}

func (s *Server) sync(ctx context.Context) {
	if err := s.manager.Sync(ctx); err != nil {
		s.logger.Errorf("Sync after flow step failed: %v", err)
	}
}

func (s *Server) view(entry models.Entry) EntryView {
	_, loaded := s.manager.Entity(entry.ID)
	apiKey := ""
	if entry.Data.APIKey != "" {
		apiKey = maskValue
	}
	return EntryView{
		ID:        entry.ID,
		UniqueID:  entry.UniqueID,
		Title:     entry.Title,
		Name:      entry.Data.Name,
		APIKey:    apiKey,
		Latitude:  entry.Data.Latitude,
		Longitude: entry.Data.Longitude,
		Version:   entry.Version,
		Loaded:    loaded,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, flow.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, flow.ErrAlreadyConfigured):
		status = http.StatusConflict
	case errors.Is(err, flow.ErrEntryNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, integration.ErrNotLoaded):
		status = http.StatusNotFound
	default:
		s.logger.Errorf("Request failed: %v", err)
	}
	body := map[string]string{"error": err.Error()}
	var validationErr *flow.ValidationError
	if errors.As(err, &validationErr) {
		body["field"] = validationErr.Field
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
