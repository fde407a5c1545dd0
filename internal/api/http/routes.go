package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func RegisterRoutes(r *mux.Router, h *Handlers, metrics http.Handler) {
	r.Use(cors, requestLogger(h.Log))

	// Panels
	r.HandleFunc("/api/panels", h.CreatePanel).Methods("POST")
	r.HandleFunc("/api/panels", h.ListPanels).Methods("GET")
	r.HandleFunc("/api/panels/{panelId}", h.GetPanel).Methods("GET")
	r.HandleFunc("/api/panels/{panelId}", h.DeletePanel).Methods("DELETE")
	r.HandleFunc("/api/panels/{panelId}/{action:toggle|open|close}", h.Visibility).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/tab", h.SetTab).Methods("PUT")

	// Chat
	r.HandleFunc("/api/panels/{panelId}/messages", h.ReceiveMessage).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/reactions", h.ApplyReaction).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/polls/activity", h.PollActivity).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/send", h.SendText).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/archive", h.GetArchive).Methods("GET")

	// Files
	r.HandleFunc("/api/panels/{panelId}/files", h.SelectFile).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/files", h.DiscardFile).Methods("DELETE")
	r.HandleFunc("/api/panels/{panelId}/files/send", h.SendFile).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/files/retry", h.RetryFile).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/previews/{handle}", h.GetPreview).Methods("GET")

	// Posters
	r.HandleFunc("/api/panels/{panelId}/posters/more", h.LoadMorePosters).Methods("POST")
	r.HandleFunc("/api/panels/{panelId}/posters/retry", h.RetryPosters).Methods("POST")

	r.HandleFunc("/ws/panels/{panelId}", h.HandleWebSocket)
	r.HandleFunc("/healthz", Healthz).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the logger.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("request")
		})
	}
}
