package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lighthuangfu/agent-study/internal/assistant"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
)

// Request defaults.
const (
	DefaultUserID = "default_user"
	DefaultInput  = "开始执行任务"
)

type runTaskRequest struct {
	UserID    string `json:"user_id"`
	UserInput string `json:"user_input"`
}

type continueRequest struct {
	ThreadID           string `json:"thread_id"`
	RewriteInstruction string `json:"rewrite_instruction"`
}

type selectionRequest struct {
	Text     string `json:"text"`
	Hint     string `json:"hint"`
	ThreadID string `json:"thread_id"`
}

type sessionResponse struct {
	SessionID     string          `json:"session_id"`
	InterruptedAt string          `json:"interrupted_at"`
	State         assistant.State `json:"state"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (s *Server) runTask(w http.ResponseWriter, r *http.Request) {
	var req runTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = DefaultUserID
	}
	input := strings.TrimSpace(req.UserInput)
	if input == "" {
		input = DefaultInput
	}

	s.logger.Info("run requested", "user_id", userID, "input_len", len(input))
	s.stream(w, r, func(ctx context.Context, sink event.Sink) {
		_, _ = s.assistant.Start(ctx, userID, input, sink)
	})
}

func (s *Server) continueRewrite(w http.ResponseWriter, r *http.Request) {
	var req continueRequest
	if !s.decode(w, r, &req) {
		return
	}
	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	pending, err := s.assistant.Pending(threadID)
	if err != nil {
		s.logger.Error("pending lookup failed", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !pending {
		writeError(w, http.StatusNotFound, "没有待继续的文档任务，请先调用 /run-task 生成文档")
		return
	}

	s.stream(w, r, func(ctx context.Context, sink event.Sink) {
		_, err := s.assistant.Continue(ctx, threadID, req.RewriteInstruction, sink)
		if errors.Is(err, assistant.ErrNothingPending) {
			sink.Emit(event.Error(err.Error()))
		}
	})
}

func (s *Server) rewriteSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.stream(w, r, func(ctx context.Context, sink event.Sink) {
		_, _ = s.assistant.RewriteSelection(ctx, assistant.SelectionRequest{
			Text:      req.Text,
			Hint:      req.Hint,
			SessionID: strings.TrimSpace(req.ThreadID),
		}, sink)
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, at, err := s.assistant.Snapshot(id)
	switch {
	case errors.Is(err, flowgraph.ErrNothingToResume):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case err != nil:
		s.logger.Error("snapshot failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, InterruptedAt: at, State: state})
}

// stream runs fn in the background and writes every event it emits as an
// SSE frame until fn returns. A client that goes away cancels the run.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, sink event.Sink)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := event.NewChannel(64)
	go func() {
		defer ch.Finish()
		fn(r.Context(), ch)
	}()

	for e := range ch.C() {
		if err := event.WriteSSE(w, e); err != nil {
			s.logger.Warn("client gone", "error", err)
			ch.Stop()
			return
		}
		flusher.Flush()
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
