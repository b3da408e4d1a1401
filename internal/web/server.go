package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/review-autopublisher/internal/auth"
	"github.com/example/review-autopublisher/internal/publisher"
)

// maxBody bounds the trigger request body.
const maxBody = 1 << 16

type Runner interface {
	Run(ctx context.Context, req publisher.Request) (publisher.Report, error)
}

type Server struct {
	Auth   *auth.Store
	Runner Runner
	Log    logrus.FieldLogger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.Handle("/api/autopublish/run", s.Auth.RequireTrigger(http.HandlerFunc(s.handleRun)))

	return mux
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errBody{Error: "method not allowed"})
		return
	}

	var req publisher.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	switch err := dec.Decode(&req); {
	case errors.Is(err, io.EOF):
		// empty body: defaults
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid request body: " + err.Error()})
		return
	case !errors.Is(dec.Decode(&json.RawMessage{}), io.EOF):
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid request body: trailing data after JSON object"})
		return
	}
	if req.Limit < 0 {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "limit must not be negative"})
		return
	}

	caller, _ := auth.CallerFromContext(r.Context())
	log := s.Log.WithField("caller", caller)

	// a caller that hangs up must not cut a run short between a publish and
	// its state write; the run keeps its own deadline
	rep, err := s.Runner.Run(context.WithoutCancel(r.Context()), req)
	if err != nil {
		log.WithError(err).Error("auto-publish run failed")
		writeJSON(w, http.StatusInternalServerError, errBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type errBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		// a run in flight keeps its own deadline; give it room to finish
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
