package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/unilib/internal/middleware"
	"github.com/hitoshi/unilib/internal/model"
	"github.com/hitoshi/unilib/internal/refresh"
)

// SyncServiceInterface は同期ハンドラーが必要とするサービスインターフェース。
type SyncServiceInterface interface {
	MaybeSync(ctx context.Context, userID string) (*refresh.Result, error)
}

// SyncHandler はHEMISプロフィール同期のHTTPハンドラー。
type SyncHandler struct {
	service SyncServiceInterface
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(service SyncServiceInterface) *SyncHandler {
	return &SyncHandler{service: service}
}

type syncRequest struct {
	UserID string `json:"userId"`
}

type syncResponse struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	LastSynced *time.Time `json:"lastSynced,omitempty"`
}

// Sync はHEMISプロフィールの同期を要求する。
// POST /api/hemis/sync
//
// ボディのuserIdは省略可能で、省略時はセッションのユーザーを対象とする。
// 新鮮なプロフィールに対してはレジストリを呼ばずスキップを返す。
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	// ボディなし・空ボディは許容する
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディが不正です。"))
		return
	}

	userID := req.UserID
	if userID == "" {
		sessionUserID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("対象ユーザーを特定できません。"))
			return
		}
		userID = sessionUserID
	}

	result, err := h.service.MaybeSync(r.Context(), userID)
	if err != nil {
		h.writeSyncError(w, userID, err)
		return
	}

	if result.Reason == refresh.ReasonTokenExpired {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewHemisTokenExpiredError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(syncResponse{
		Success:    true,
		Message:    result.Reason,
		LastSynced: result.LastSyncedAt,
	})
}

func (h *SyncHandler) writeSyncError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, refresh.ErrUserNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
	case errors.Is(err, refresh.ErrNotEligible):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotHemisLinkedError())
	default:
		slog.Error("hemis sync failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewRegistryUnavailableError())
	}
}
