// Package server is the browser-facing dashboard: server-rendered page,
// chart images and a websocket that tells the page when to reload.
package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/service"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

//go:embed templates/*.html
var templates embed.FS

// Status is the small view of the published state pushed over the
// websocket and returned by /api/snapshot.
type Status struct {
	Seq       uint64          `json:"seq"`
	Loading   bool            `json:"loading"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Synthetic []domain.Kind   `json:"synthetic"`
	Charts    charts.Stats    `json:"charts"`
	Summary   service.Summary `json:"summary"`
}

type Server struct {
	mux     *http.ServeMux
	tmpl    *template.Template
	dash    *service.Dashboard
	charts  *charts.Controller
	metrics *telemetry.Metrics
	hub     *hub
}

// New builds the server and subscribes it to d, so it must be called
// before the first refresh is published to miss nothing.
func New(d *service.Dashboard, c *charts.Controller, m *telemetry.Metrics) *Server {
	funcMap := template.FuncMap{
		"toJSON": toJSON,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return t.Format("2006-01-02 15:04:05")
		},
		"lower": strings.ToLower,
	}
	tmpl := template.Must(template.New("base").Funcs(funcMap).ParseFS(templates, "templates/*.html"))

	s := &Server{
		mux:     http.NewServeMux(),
		tmpl:    tmpl,
		dash:    d,
		charts:  c,
		metrics: m,
		hub:     newHub(),
	}
	s.routes()
	go s.hub.run()
	d.Subscribe(func(st *service.State) {
		s.hub.publish("update", s.status(st))
	})
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /dashboard", s.handleDashboard)
	s.mux.HandleFunc("GET /charts/{file}", s.handleChart)
	s.mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close disconnects every websocket client.
func (s *Server) Close() {
	s.hub.close()
}

func (s *Server) status(st *service.State) Status {
	out := Status{
		Loading:   st.Loading,
		Error:     st.Error,
		UpdatedAt: st.UpdatedAt,
		Charts:    s.charts.Stats(),
	}
	if st.Snapshot != nil {
		out.Seq = st.Snapshot.Seq
		out.Synthetic = st.Snapshot.SyntheticKinds()
		out.Summary = service.Summarize(st.Snapshot)
	}
	return out
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if b, err := json.Marshal(message{Type: "init", Data: s.status(s.dash.State())}); err == nil {
		c.send <- b
	}
	s.hub.add(c)
	go c.writePump()
	defer s.hub.remove(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	st := s.dash.State()
	status := "online"
	if !st.Live() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"loading": st.Loading,
		"clients": s.hub.size(),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, "dashboard.html", buildPage(s.dash.State()))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	surface, ok := charts.ParseSurface(strings.TrimSuffix(r.PathValue("file"), ".png"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	err := s.charts.Render(surface, &buf)
	switch {
	case errors.Is(err, charts.ErrNotAttached), errors.Is(err, charts.ErrNotMounted):
		// nothing drawn yet; the page shows its loading overlay
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		log.Error().Err(err).Str("surface", string(surface)).Msg("chart render failed")
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	st := s.dash.State()
	if st.Snapshot == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no snapshot yet"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   s.status(st),
		"snapshot": st.Snapshot,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status(s.dash.State()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.dash.TryTrigger()
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
	case errors.Is(err, service.ErrRefreshInFlight):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrRateLimited):
		w.Header().Set("Retry-After", "2")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func toJSON(v any) template.JS {
	b, _ := json.Marshal(v)
	return template.JS(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
