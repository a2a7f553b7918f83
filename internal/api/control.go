// Package api exposes the bridge control surface: a health endpoint and an
// outbound send endpoint the decision service calls back into.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mojilabs/mojibridge/internal/imsg"
	"github.com/mojilabs/mojibridge/internal/status"
	"go.uber.org/zap"
)

// WatcherInfo is the read-only view of the watcher the health endpoint needs.
type WatcherInfo interface {
	Cursor() int64
	PendingRetries() int
}

// Handler serves the control endpoints.
type Handler struct {
	messenger imsg.Messenger
	machine   *status.Machine
	watcher   WatcherInfo
	stats     *Stats
	logger    *zap.Logger
	http      *http.Client
}

// NewHandler builds the control surface mux.
func NewHandler(m imsg.Messenger, machine *status.Machine, w WatcherInfo, stats *Stats, logger *zap.Logger) http.Handler {
	h := &Handler{
		messenger: m,
		machine:   machine,
		watcher:   w,
		stats:     stats,
		logger:    logger,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /send", h.send)
	return mux
}

type healthResponse struct {
	Status         string   `json:"status"`
	Cursor         int64    `json:"cursor"`
	PendingRetries int      `json:"pendingRetries"`
	Counters       Counters `json:"counters"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   string(h.machine.Current()),
		Counters: h.stats.Snapshot(),
	}
	if h.watcher != nil {
		resp.Cursor = h.watcher.Cursor()
		resp.PendingRetries = h.watcher.PendingRetries()
	}
	writeJSON(w, http.StatusOK, resp)
}

type sendRequest struct {
	ChatID   string `json:"chatId"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
	FilePath string `json:"filePath"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.ChatID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chatId is required"})
		return
	}

	ctx := r.Context()

	if req.ImageURL != "" {
		path, cleanup, err := h.download(req.ImageURL)
		if err != nil {
			h.logger.Error("image download failed", zap.String("url", req.ImageURL), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "image download failed"})
			return
		}
		defer cleanup()
		req.FilePath = path
	}

	if req.FilePath != "" {
		if err := h.messenger.SendFile(ctx, req.ChatID, req.FilePath); err != nil {
			h.logger.Error("file send failed", zap.String("chat_id", req.ChatID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "send failed"})
			return
		}
	}
	if req.Text != "" {
		if err := h.messenger.SendText(ctx, req.ChatID, req.Text); err != nil {
			h.logger.Error("text send failed", zap.String("chat_id", req.ChatID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "send failed"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// download fetches a remote image into a temp file for the automation layer,
// which can only attach local paths.
func (h *Handler) download(url string) (path string, cleanup func(), err error) {
	resp, err := h.http.Get(url)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "mojibridge-*"+filepath.Ext(url))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
