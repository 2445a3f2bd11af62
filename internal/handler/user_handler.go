package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unilib/internal/middleware"
	"github.com/hitoshi/unilib/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetAvatar(ctx context.Context, userID string) ([]byte, string, error)
}

// UserHandler はユーザー情報関連のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// Avatar はログインユーザーのキャッシュ済みアバター画像を返す。
// GET /api/users/me/avatar
func (h *UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUserNotFoundError())
		return
	}

	data, mime, err := h.service.GetAvatar(r.Context(), userID)
	if err != nil {
		slog.Error("failed to get avatar",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Write(data)
}
