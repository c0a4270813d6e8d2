// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/absmach/mailmq/mail"
	"github.com/absmach/mailmq/storage"
)

// Config holds API server configuration.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
}

// Server exposes the mail service over a JSON HTTP API. All delivery
// endpoints are fire-and-forget: they acknowledge acceptance, and the
// outcome is observable only through persisted push state.
type Server struct {
	config   Config
	svc      *mail.Service
	logger   *slog.Logger
	server   *http.Server
	listener net.Listener
}

// New creates a new API server.
func New(cfg Config, svc *mail.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		svc:    svc,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pushes", s.handleSubmitPush)
	mux.HandleFunc("/v1/pushes/", s.handleGetPush)
	mux.HandleFunc("/v1/sync", s.handleRequestSync)
	mux.HandleFunc("/v1/contents", s.handleCreateContent)
	mux.HandleFunc("/v1/contents/", s.handleGetContent)
	mux.HandleFunc("/v1/broadcasts", s.handlePublishBroadcast)

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Addr returns the listener's network address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Listen starts the API server and blocks until ctx is cancelled or the
// server fails.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	s.listener = listener

	s.logger.Info("api server starting", slog.String("address", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("api server shutdown error", slog.String("error", err.Error()))
			return err
		}

		s.logger.Info("api server stopped")
		return nil
	}
}

type submitPushRequest struct {
	RoleID    string        `json:"role_id"`
	Route     storage.Route `json:"route"`
	ContentID string        `json:"content_id"`
	Scheduled bool          `json:"scheduled"`
}

type submitPushResponse struct {
	PushID string `json:"push_id"`
}

func (s *Server) handleSubmitPush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.RoleID == "" || req.ContentID == "" {
		http.Error(w, "role_id and content_id are required", http.StatusBadRequest)
		return
	}
	if req.Route.Kind == "" {
		http.Error(w, "route.kind is required", http.StatusBadRequest)
		return
	}

	target := storage.Target{RoleID: req.RoleID, Route: req.Route}
	pushID, err := s.svc.SubmitPush(target, req.ContentID, req.Scheduled)
	if err != nil {
		s.logger.Error("submit push failed", slog.String("error", err.Error()))
		http.Error(w, "failed to accept push", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitPushResponse{PushID: pushID})
}

func (s *Server) handleGetPush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/pushes/")
	if id == "" {
		http.Error(w, "push id is required", http.StatusBadRequest)
		return
	}

	push, err := s.svc.GetPush(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "push not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load push", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(push)
}

type requestSyncRequest struct {
	RoleID         string        `json:"role_id"`
	RoleCreateTime int64         `json:"role_create_time"` // unix milliseconds
	Route          storage.Route `json:"route"`
}

func (s *Server) handleRequestSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req requestSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.RoleID == "" {
		http.Error(w, "role_id is required", http.StatusBadRequest)
		return
	}

	s.svc.RequestSync(req.RoleID, time.UnixMilli(req.RoleCreateTime), req.Route)

	w.WriteHeader(http.StatusAccepted)
}

type createContentRequest struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	Attachment string `json:"attachment,omitempty"`
}

type createContentResponse struct {
	ContentID string `json:"content_id"`
}

func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Title == "" && req.Body == "" {
		http.Error(w, "title or body is required", http.StatusBadRequest)
		return
	}

	id, err := s.svc.CreateContent(req.Title, req.Body, req.Attachment)
	if err != nil {
		s.logger.Error("create content failed", slog.String("error", err.Error()))
		http.Error(w, "failed to create content", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createContentResponse{ContentID: id})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/contents/")
	if id == "" {
		http.Error(w, "content id is required", http.StatusBadRequest)
		return
	}

	content, err := s.svc.GetContent(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "content not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load content", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(content)
}

type publishBroadcastRequest struct {
	ContentID string `json:"content_id"`
}

type publishBroadcastResponse struct {
	BroadcastID int64 `json:"broadcast_id"`
}

func (s *Server) handlePublishBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req publishBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.ContentID == "" {
		http.Error(w, "content_id is required", http.StatusBadRequest)
		return
	}

	id, err := s.svc.PublishBroadcast(req.ContentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "content not found", http.StatusNotFound)
			return
		}
		s.logger.Error("publish broadcast failed", slog.String("error", err.Error()))
		http.Error(w, "failed to publish broadcast", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(publishBroadcastResponse{BroadcastID: id})
}
