// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/unilib/internal/auth"
	"github.com/hitoshi/unilib/internal/middleware"
	"github.com/hitoshi/unilib/internal/model"
	"github.com/hitoshi/unilib/internal/refresh"
	"github.com/hitoshi/unilib/internal/registry"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	HandleLogin(ctx context.Context, creds model.RegistryCredentials) (*auth.ReconcileResult, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// SyncTrigger はログイン後の非同期同期トリガーのインターフェース。
type SyncTrigger interface {
	MaybeSync(ctx context.Context, userID string) (*refresh.Result, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はHEMIS認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	sync    SyncTrigger
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。syncはnil可。
func NewAuthHandler(service AuthServiceInterface, sync SyncTrigger, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		sync:    sync,
		config:  config,
	}
}

// loginRequest はHEMISログインのリクエストボディ。
type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// loginResponse はHEMISログイン成功時のレスポンス。
// passwordはレジストリログイン名から導出されたローカル資格情報で、
// クライアントが後続のローカルログインに使用する。
type loginResponse struct {
	Success bool      `json:"success"`
	Data    loginData `json:"data"`
}

type loginData struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Existing bool   `json:"existing"`
}

// HemisLogin はHEMIS資格情報でのログインを処理する。
// POST /auth/hemis/login
//
// レジストリ認証→アカウント照合→セッション発行を行い、
// 成功時は照合結果とセッションCookieを返す。
// 失敗はエラー種別に応じて400/401/500に振り分け、詳細はログのみに残す。
func (h *AuthHandler) HemisLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディが不正です。"))
		return
	}
	if req.Login == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("loginとpasswordは必須です。"))
		return
	}

	result, session, err := h.service.HandleLogin(r.Context(), model.RegistryCredentials{
		Login:    req.Login,
		Password: req.Password,
	})
	if err != nil {
		h.writeLoginError(w, req.Login, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// ログイン活動をトリガーにプロフィール同期を裏で試みる。
	// リクエストコンテキストはレスポンス後にキャンセルされるため使わない。
	if h.sync != nil {
		userID := result.UserID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := h.sync.MaybeSync(ctx, userID); err != nil {
				slog.Warn("post-login sync failed",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Success: true,
		Data: loginData{
			Email:    result.Email,
			Password: result.Password,
			Existing: result.Existing,
		},
	})
}

// writeLoginError はログイン失敗をHTTPステータスに変換する。
func (h *AuthHandler) writeLoginError(w http.ResponseWriter, login string, err error) {
	switch {
	case registry.IsInvalidCredentials(err):
		slog.Info("hemis login rejected", slog.String("login", login))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
	case registry.IsUnavailable(err):
		slog.Error("hemis registry unavailable", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewRegistryUnavailableError())
	default:
		// ProfileFetchFailed / ProvisioningFailed / その他の内部エラー
		slog.Error("hemis login failed",
			slog.String("login", login),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewProvisioningFailedError())
	}
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// meResponse は/auth/meのレスポンス。
// HEMISミラー項目を含むが、保存トークンとパスワードハッシュは決して含めない。
type meResponse struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           string     `json:"role"`
	HemisID        *string    `json:"hemisId,omitempty"`
	DepartmentID   *int       `json:"departmentId,omitempty"`
	DepartmentName *string    `json:"departmentName,omitempty"`
	DepartmentCode *string    `json:"departmentCode,omitempty"`
	FacultyName    *string    `json:"facultyName,omitempty"`
	GroupName      *string    `json:"groupName,omitempty"`
	EducationForm  *string    `json:"educationForm,omitempty"`
	SpecialtyName  *string    `json:"specialtyName,omitempty"`
	Course         *int       `json:"course,omitempty"`
	GPA            *float64   `json:"gpa,omitempty"`
	AvatarURL      *string    `json:"avatarUrl,omitempty"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt,omitempty"`
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meResponse{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           user.Role,
		HemisID:        user.HemisID,
		DepartmentID:   user.DepartmentID,
		DepartmentName: user.DepartmentName,
		DepartmentCode: user.DepartmentCode,
		FacultyName:    user.FacultyName,
		GroupName:      user.GroupName,
		EducationForm:  user.EducationForm,
		SpecialtyName:  user.SpecialtyName,
		Course:         user.Course,
		GPA:            user.GPA,
		AvatarURL:      user.AvatarURL,
		LastSyncedAt:   user.LastSyncedAt,
	})
}
