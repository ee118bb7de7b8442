package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"hris-portal/internal/observability"
)

// ResetTokenSweeper clears reset-token pairs whose expiry has passed.
type ResetTokenSweeper interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time, batchSize int) (int64, error)
}

type CleanupHandler struct {
	store      ResetTokenSweeper
	logger     *observability.Logger
	cronSecret string
	batchSize  int
	now        func() time.Time
}

func NewCleanupHandler(store ResetTokenSweeper, logger *observability.Logger, cronSecret string, batchSize int) *CleanupHandler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &CleanupHandler{
		store:      store,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.authorized(r.Header.Get("Authorization")) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	cleared, err := h.store.ClearExpiredResetTokens(r.Context(), h.now(), h.batchSize)
	if err != nil {
		h.logger.Error("reset_token_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Cleanup failed"})
		return
	}

	h.logger.Info("reset_token_cleanup_completed", map[string]any{
		"cleared_reset_tokens": cleared,
		"batch_size":           h.batchSize,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"clearedResetTokens": cleared,
	})
}

func (h *CleanupHandler) authorized(header string) bool {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.cronSecret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
