// Package httphandler is the REST driving adapter: it exposes rule
// evaluation, commands and action history over HTTP.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// Evaluator runs the rules of a pull request.
type Evaluator interface {
	Evaluate(ctx context.Context, repoFullName string, prNumber int) ([]model.ActionRecord, error)
}

// Commander runs a comment command on a pull request. It returns nil, nil
// when body is not a command.
type Commander interface {
	Handle(ctx context.Context, repoFullName string, prNumber int, author, body string) (*model.Result, error)
}

// History lists the recorded action results of a pull request.
type History interface {
	ListByPR(ctx context.Context, repoFullName string, prNumber int) ([]model.ActionRecord, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	evaluator Evaluator
	commander Commander
	history   History
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(evaluator Evaluator, commander Commander, history History, logger *slog.Logger) *Handler {
	return &Handler{
		evaluator: evaluator,
		commander: commander,
		history:   history,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. accessLogger receives one line per
// request. The POST routes act on behalf of a caller and require a body
// signed with secret.
func NewServeMux(h *Handler, accessLogger *slog.Logger, secret []byte) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/pulls/{number}/results", h.ListResults)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/pulls/{number}/evaluate", requireSignature(secret, h.logger, h.Evaluate))
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/pulls/{number}/commands", requireSignature(secret, h.logger, h.RunCommand))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoverPanics(h.logger, mux)
	wrapped = accessLog(accessLogger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListResults returns the action history of a pull request, newest first.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	repoFullName, number, ok := pullFromPath(w, r)
	if !ok {
		return
	}

	records, err := h.history.ListByPR(r.Context(), repoFullName, number)
	if err != nil {
		h.serviceError(w, r, err, "failed to list results", repoFullName, number)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponses(records))
}

// Evaluate runs the rules of a pull request and returns the new records.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	repoFullName, number, ok := pullFromPath(w, r)
	if !ok {
		return
	}

	records, err := h.evaluator.Evaluate(r.Context(), repoFullName, number)
	if err != nil {
		h.serviceError(w, r, err, "evaluation failed", repoFullName, number)
		return
	}

	writeJSON(w, http.StatusOK, EvaluateResponse{Records: toRecordResponses(records)})
}

// RunCommand runs the command carried in the request body.
func (h *Handler) RunCommand(w http.ResponseWriter, r *http.Request) {
	repoFullName, number, ok := pullFromPath(w, r)
	if !ok {
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Author) == "" || strings.TrimSpace(req.Body) == "" {
		writeBadRequest(w, r, "author and body are required")
		return
	}

	res, err := h.commander.Handle(r.Context(), repoFullName, number, req.Author, req.Body)
	if err != nil {
		h.serviceError(w, r, err, "command failed", repoFullName, number)
		return
	}
	if res == nil {
		writeBadRequest(w, r, "body is not a command")
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(*res))
}

// serviceError maps domain errors to problem responses and logs the rest.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error, msg, repoFullName string, number int) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeNotFound(w, r, err.Error())
	case errors.Is(err, model.ErrInvalidConfig):
		writeUnprocessable(w, r, err.Error())
	case errors.Is(err, context.Canceled):
		writeProblem(w, r, statusClientClosedRequest, "cancelled", "request cancelled")
	default:
		h.logger.Error(msg, "repo", repoFullName, "pr_number", number, "error", err)
		writeInternalError(w, r)
	}
}

// pullFromPath extracts owner/repo and the pull request number. It writes a
// 400 and returns false on invalid input.
func pullFromPath(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	if !isValidRepoName(repoFullName) {
		writeBadRequest(w, r, "invalid repository name: expected owner/repo format")
		return "", 0, false
	}

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number <= 0 {
		writeBadRequest(w, r, "invalid pull request number")
		return "", 0, false
	}

	return repoFullName, number, true
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
