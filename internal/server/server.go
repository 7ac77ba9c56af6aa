// Package server exposes chat, search and scrape over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/chat"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/retrieval"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Chatter answers one prompt.
type Chatter interface {
	Chat(ctx context.Context, prompt string) *chat.Reply
}

// FlowFactory returns a fresh flow for one request.
type FlowFactory func(sessionID string, grade bool) Chatter

// Retriever runs searches and scrapes.
type Retriever interface {
	Search(ctx context.Context, query string, numResults int) ([]retrieval.SearchResult, error)
	Scrape(ctx context.Context, rawURL string) (string, error)
}

type Server struct {
	newFlow        FlowFactory
	retriever      Retriever
	requestTimeout time.Duration
}

func NewServer(newFlow FlowFactory, retriever Retriever, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Minute
	}
	return &Server{newFlow: newFlow, retriever: retriever, requestTimeout: requestTimeout}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))
		r.Post("/v1/chat", s.chat)
		r.Post("/v1/search", s.search)
		r.Post("/v1/scrape", s.scrape)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Server("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Server("server stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Server("%s %s %d %dB %v [%s]", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	Grade  *bool  `json:"grade,omitempty"`
}

type chatResponse struct {
	ID          string `json:"id"`
	Answer      string `json:"answer"`
	FirstAnswer string `json:"first_answer,omitempty"`
	Grade       string `json:"grade,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(w, "prompt is required", http.StatusBadRequest)
		return
	}
	grade := req.Grade == nil || *req.Grade

	id := uuid.New().String()
	reply := s.newFlow(id, grade).Chat(r.Context(), prompt)
	resp := chatResponse{
		ID:          id,
		Answer:      reply.Answer,
		FirstAnswer: reply.FirstAnswer,
		Grade:       reply.Grade,
	}
	if reply.Err != nil {
		resp.Error = reply.Err.Error()
	}
	writeJSON(w, resp, http.StatusOK)
}

type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

type searchResponse struct {
	Query   string                   `json:"query"`
	Results []retrieval.SearchResult `json:"results"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := s.retriever.Search(r.Context(), req.Query, req.NumResults)
	switch {
	case errors.Is(err, retrieval.ErrInvalidTarget):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, retrieval.ErrEmptyResult):
		results = []retrieval.SearchResult{}
	case err != nil:
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, searchResponse{Query: req.Query, Results: results}, http.StatusOK)
}

type scrapeRequest struct {
	URL string `json:"url"`
}

type scrapeResponse struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content, err := s.retriever.Scrape(r.Context(), req.URL)
	switch {
	case errors.Is(err, retrieval.ErrInvalidTarget):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, scrapeResponse{URL: req.URL, Content: content}, http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, msg string, statusCode int) {
	writeJSON(w, map[string]string{"error": msg}, statusCode)
}
