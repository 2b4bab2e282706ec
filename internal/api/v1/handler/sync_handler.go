package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SyncHandler handles sync status and manual sync endpoints.
type SyncHandler struct {
	statusSvc service.SyncStatusService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(statusSvc service.SyncStatusService, validate *validator.Validate, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{statusSvc: statusSvc, validate: validate, logger: logger}
}

// RegisterRoutes mounts the sync routes.
func (h *SyncHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/sync/quota/", authMw(http.HandlerFunc(h.getQuotaSummary)))
	mux.Handle("/sync/sources/", authMw(http.HandlerFunc(h.handleSource)))
}

// getQuotaSummary godoc
// @Summary Get the provider's quota summary for the current UTC day
// @Description Returns daily usage, remaining budget, and the warning level.
// @Tags sync
// @Produce json
// @Param provider path string true "Provider name" Enums(youtube)
// @Success 200 {object} dto.QuotaSummaryResponse
// @Failure 400 {string} string "unsupported provider"
// @Failure 500 {string} string "failed to load quota summary"
// @Router /sync/quota/{provider} [get]
func (h *SyncHandler) getQuotaSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	providerName := strings.TrimPrefix(r.URL.Path, "/sync/quota/")
	params := struct {
		Provider string `validate:"required,oneof=youtube"`
	}{Provider: providerName}
	if err := h.validate.Struct(&params); err != nil {
		http.Error(w, "unsupported provider: "+providerName, http.StatusBadRequest)
		return
	}

	summary, err := h.statusSvc.QuotaSummary(r.Context(), model.Provider(providerName))
	if err != nil {
		h.logger.Error().Err(err).Str("provider", providerName).Msg("failed to load quota summary")
		http.Error(w, "failed to load quota summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.QuotaSummaryResponse{
		Provider:        string(summary.Provider),
		DailyUsage:      summary.DailyUsage,
		DailyLimit:      summary.DailyLimit,
		UsagePercentage: summary.UsagePercentage,
		RemainingQuota:  summary.RemainingQuota,
		WarningLevel:    string(summary.WarningLevel),
		ErrorCount:      summary.ErrorCount,
	})
}

// handleSource dispatches /sync/sources/{id}/progress and /sync/sources/{id}.
func (h *SyncHandler) handleSource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sync/sources/")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(rest, "/progress"):
		h.getProgress(w, r, strings.TrimSuffix(rest, "/progress"))
	case r.Method == http.MethodPost && !strings.Contains(rest, "/"):
		h.forceSync(w, r, rest)
	default:
		http.NotFound(w, r)
	}
}

// getProgress godoc
// @Summary Get sync progress for a source
// @Description Returns the source's sync phase and counters; percent complete is only present during the initial full sync.
// @Tags sync
// @Produce json
// @Param id path string true "Source ID"
// @Success 200 {object} dto.SyncProgressResponse
// @Failure 404 {string} string "source not found"
// @Failure 500 {string} string "failed to load sync progress"
// @Router /sync/sources/{id}/progress [get]
func (h *SyncHandler) getProgress(w http.ResponseWriter, r *http.Request, sourceID string) {
	if sourceID == "" {
		http.NotFound(w, r)
		return
	}
	progress, err := h.statusSvc.SourceProgress(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrSourceNotFound) || errors.Is(err, repository.ErrSyncStateNotFound) {
			http.Error(w, "source not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("source_id", sourceID).Msg("failed to load sync progress")
		http.Error(w, "failed to load sync progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.SyncProgressResponse{
		SourceID:                  progress.SourceID,
		Phase:                     string(progress.Phase),
		SyncedCount:               progress.SyncedCount,
		FailedCount:               progress.FailedCount,
		TotalResults:              progress.TotalResults,
		PercentComplete:           progress.PercentComplete,
		EstimatedSecondsRemaining: progress.EstimatedSecondsRemaining,
		LastSyncedAt:              progress.LastSyncedAt,
		LastError:                 progress.LastError,
	})
}

// forceSync godoc
// @Summary Request an out-of-band sync for a source
// @Description Enqueues a manual sync consumed by the sync daemon outside the batch cap, still subject to the quota guard.
// @Tags sync
// @Accept json
// @Produce json
// @Param id path string true "Source ID"
// @Param request body dto.ForceSyncRequest false "Optional request metadata"
// @Success 202 {object} dto.ForceSyncResponse
// @Failure 400 {string} string "validation failed"
// @Failure 404 {string} string "source not found"
// @Failure 500 {string} string "failed to enqueue sync"
// @Router /sync/sources/{id} [post]
func (h *SyncHandler) forceSync(w http.ResponseWriter, r *http.Request, sourceID string) {
	var req dto.ForceSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	userID, _ := r.Context().Value(middleware.UserContextKey).(string)

	msgID, err := h.statusSvc.RequestSync(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrSourceNotFound) {
			http.Error(w, "source not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("source_id", sourceID).Msg("failed to enqueue sync")
		http.Error(w, "failed to enqueue sync", http.StatusInternalServerError)
		return
	}
	h.logger.Info().Str("source_id", sourceID).Str("requested_by", userID).Str("reason", req.Reason).Msg("manual sync enqueued")
	writeJSON(w, h.logger, http.StatusAccepted, dto.ForceSyncResponse{SourceID: sourceID, MessageID: msgID, Enqueued: true})
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
