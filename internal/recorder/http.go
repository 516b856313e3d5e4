package recorder

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP exposes recorder state and controls to the rest of the Forseti
// application on localhost, plus a websocket event stream for the overlay.
type HTTP struct {
	server   *http.Server
	logger   Logger
	recorder *Recorder

	port int

	extraRoutes map[string]http.Handler
}

func NewHTTP(port int, recorder *Recorder, logger Logger) *HTTP {
	return &HTTP{
		port:        port,
		recorder:    recorder,
		logger:      logger,
		extraRoutes: make(map[string]http.Handler),
	}
}

// Handle registers an extra handler on the API router, for process-level
// surfaces like the debug bundle that live outside this package. Must be
// called before Listen.
func (h *HTTP) Handle(pattern string, handler http.Handler) {
	h.extraRoutes[pattern] = handler
}

func (h *HTTP) Listen() error {
	h.logger.Infof("Recorder HTTP API listening on port: %d", h.port)

	h.server = &http.Server{
		Handler: h.Router(),
		Addr:    fmt.Sprintf("localhost:%d", h.port),
	}

	go func() {
		err := h.server.ListenAndServe()

		if err == http.ErrServerClosed {
			return
		} else if err != nil {
			h.logger.WithError(err).Errorf("Could not start recorder HTTP API")
		}
	}()

	return nil
}

func (h *HTTP) Close() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}

func (h *HTTP) Router() http.Handler {
	router := chi.NewRouter()

	router.Get("/status", h.status)
	router.Get("/overlay", h.overlay)
	router.Get("/drill", h.drill)
	router.Post("/recording/start", h.startRecording)
	router.Post("/recording/stop", h.stopRecording)
	router.Post("/drill/start", h.startDrill)
	router.Post("/drill/abandon", h.abandonDrill)
	router.Get("/ws", h.websocketStream)
	router.Mount("/metrics", promhttp.Handler())

	for pattern, handler := range h.extraRoutes {
		router.Mount(pattern, handler)
	}

	return router
}

func (h *HTTP) status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.recorder.Snapshot())
}

func (h *HTTP) overlay(w http.ResponseWriter, r *http.Request) {
	snapshot := h.recorder.Snapshot()

	if snapshot.Overlay == nil {
		http.Error(w, "no telemetry received yet", http.StatusNotFound)
		return
	}

	h.writeJSON(w, snapshot.Overlay)
}

func (h *HTTP) drill(w http.ResponseWriter, r *http.Request) {
	snapshot := h.recorder.Snapshot()

	if snapshot.Drill == nil {
		http.Error(w, "no drill", http.StatusNotFound)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"drill":    snapshot.Drill,
		"progress": snapshot.DrillProgress,
	})
}

func (h *HTTP) startRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.recorder.StartRecording(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) stopRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.recorder.StopRecording(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) startDrill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type DrillType `json:"type"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	drill, err := h.recorder.StartDrill(body.Type)

	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.writeJSON(w, drill)
}

func (h *HTTP) abandonDrill(w http.ResponseWriter, r *http.Request) {
	if err := h.recorder.AbandonDrill(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

var websocketUpgrader = websocket.Upgrader{
	// the API binds to localhost only; the overlay runs on the same host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocketStream pushes recorder events to a connected overlay client until
// it goes away.
func (h *HTTP) websocketStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)

	if err != nil {
		h.logger.WithError(err).Errorf("Could not upgrade websocket connection")
		return
	}

	defer conn.Close()

	events := h.recorder.Subscribe()
	defer h.recorder.Unsubscribe(events)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}

			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (h *HTTP) writeJSON(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(value); err != nil {
		h.logger.WithError(err).Errorf("Could not encode response")
	}
}
