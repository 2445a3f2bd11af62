// Package auth はHEMISレジストリとのアカウント照合（リコンシリエーション）と
// セッション管理を提供する。
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/unilib/internal/identity"
	"github.com/hitoshi/unilib/internal/model"
	"github.com/hitoshi/unilib/internal/registry"
	"github.com/hitoshi/unilib/internal/repository"
)

// derivedPasswordLength は導出パスワードの長さ（hex文字数）。
const derivedPasswordLength = 32

var (
	// ErrProfileFetchFailed はプロフィール取得失敗を表す。
	// 新規アカウントはプロフィールなしには作成できないため、その試行は終端する。
	ErrProfileFetchFailed = errors.New("profile fetch failed")

	// ErrProvisioningFailed はアカウント作成の失敗（重複以外）を表す。
	ErrProvisioningFailed = errors.New("account provisioning failed")
)

// MetricsRecorder はログイン試行の計測インターフェース。
type MetricsRecorder interface {
	RecordLogin(success bool)
}

// ReconcileResult はリコンシリエーションの結果。
// Passwordはレジストリログイン名から決定的に導出されたローカルパスワードで、
// クライアントが後続のローカルセッション確立に使用する。
type ReconcileResult struct {
	UserID   string
	Email    string
	Password string
	Existing bool
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge         int // セッション有効期間（秒）
	EmailDomain           string
	DerivedPasswordSecret string
}

// Service はHEMIS資格情報によるログインとアカウント照合のビジネスロジックを提供する。
type Service struct {
	provider    registry.Provider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	metrics     MetricsRecorder
	config      ServiceConfig
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	provider registry.Provider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		provider:    provider,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		metrics:     metrics,
		config:      config,
	}
}

// Reconcile はHEMIS資格情報をローカルアカウントに照合する。
//
// 既存アカウントはレジストリ呼び出し1回（認証のみ）の高速経路で返す。
// 未登録の識別子に対してのみプロフィール取得とアカウント作成を行う。
// メール重複によるINSERT失敗は「既に同一人物が登録済み」として成功扱いにする
// （hemis_idが正規の結合キーであり、導出パスワードも同一ログイン名の関数で
// あるため、衝突は同一人物以外にあり得ない）。
//
// 失敗はregistry.Error（資格情報・レジストリ障害）、ErrProfileFetchFailed、
// ErrProvisioningFailedのいずれかで返る。
func (s *Service) Reconcile(ctx context.Context, creds model.RegistryCredentials) (*ReconcileResult, error) {
	// 1. レジストリ認証。失敗はエラー種別をそのまま上へ返す。
	token, err := s.provider.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	// 2. トークンから学籍番号をローカルデコード（ネットワーク呼び出しなし）
	hemisID, err := registry.DecodeStudentID(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileFetchFailed, err)
	}

	// 3. 決定的なローカルパスワードを導出
	password := s.derivePassword(creds.Login)

	// 4. hemis_idで既存アカウントを検索
	user, err := s.userRepo.FindByHemisID(ctx, hemisID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by hemis ID: %w", err)
	}

	if user != nil {
		// 高速経路: プロフィール再取得はしない。
		// 保存トークンだけは今回の新しいものに差し替える（ベストエフォート）。
		if err := s.userRepo.UpdateHemisToken(ctx, user.ID, token); err != nil {
			slog.Warn("failed to refresh stored hemis token",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		slog.Info("existing account reconciled",
			slog.String("user_id", user.ID),
			slog.String("hemis_id", hemisID),
		)
		return &ReconcileResult{
			UserID:   user.ID,
			Email:    user.Email,
			Password: password,
			Existing: true,
		}, nil
	}

	// 5. 新規: プロフィールを取得してアカウントを作成
	profile, err := s.provider.FetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileFetchFailed, err)
	}

	fields := identity.MapProfile(profile, creds.Login, s.config.EmailDomain)

	newUser, err := s.buildUser(fields, hemisID, creds.Login, token, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if repository.IsDuplicate(err) {
			// 並行リコンシリエーションまたは別経路の既存アカウント。
			// 成功（既存扱い）として返すことで操作を冪等にする。
			return s.resolveDuplicate(ctx, hemisID, fields.Email, password)
		}
		return nil, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	slog.Info("new account provisioned",
		slog.String("user_id", newUser.ID),
		slog.String("hemis_id", hemisID),
		slog.String("email", newUser.Email),
	)

	return &ReconcileResult{
		UserID:   newUser.ID,
		Email:    newUser.Email,
		Password: password,
		Existing: false,
	}, nil
}

// HandleLogin はReconcileを実行し、成功時にローカルセッションを発行する。
func (s *Service) HandleLogin(ctx context.Context, creds model.RegistryCredentials) (*ReconcileResult, *model.Session, error) {
	result, err := s.Reconcile(ctx, creds)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLogin(false)
		}
		return nil, nil, err
	}

	session, err := s.createSession(ctx, result.UserID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLogin(false)
		}
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLogin(true)
	}
	return result, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// derivePassword はレジストリログイン名からローカルパスワードを導出する。
// HMAC-SHA256(login, secret)のhex表現を固定長に切り詰めたもので、
// 同じログイン名・同じシークレットに対して常に同じ値になる。
func (s *Service) derivePassword(login string) string {
	mac := hmac.New(sha256.New, []byte(s.config.DerivedPasswordSecret))
	mac.Write([]byte(login))
	return hex.EncodeToString(mac.Sum(nil))[:derivedPasswordLength]
}

// buildUser はマッピング済みフィールドから新規ユーザーレコードを組み立てる。
func (s *Service) buildUser(fields identity.AccountFields, hemisID, login, token, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	return &model.User{
		ID:             uuid.New().String(),
		Email:          fields.Email,
		Name:           fields.Name,
		Role:           "student",
		PasswordHash:   string(hash),
		HemisID:        &hemisID,
		HemisLogin:     &login,
		DepartmentID:   fields.DepartmentID,
		DepartmentName: fields.DepartmentName,
		DepartmentCode: fields.DepartmentCode,
		FacultyName:    fields.FacultyName,
		GroupName:      fields.GroupName,
		EducationForm:  fields.EducationForm,
		SpecialtyName:  fields.SpecialtyName,
		Course:         fields.Course,
		GPA:            fields.GPA,
		AvatarURL:      fields.AvatarURL,
		HemisToken:     &token,
		LastSyncedAt:   &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// resolveDuplicate は重複INSERT競合時に既存アカウントを特定し、成功として返す。
func (s *Service) resolveDuplicate(ctx context.Context, hemisID, email, password string) (*ReconcileResult, error) {
	user, err := s.userRepo.FindByHemisID(ctx, hemisID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}
	if user == nil {
		// hemis_idでは見つからない = 別経路で作られた同一メールのアカウント
		user, err = s.userRepo.FindByEmail(ctx, email)
		if err != nil || user == nil {
			return nil, fmt.Errorf("%w: duplicate account could not be resolved", ErrProvisioningFailed)
		}
	}

	slog.Info("concurrent provisioning resolved as existing account",
		slog.String("user_id", user.ID),
		slog.String("hemis_id", hemisID),
	)
	return &ReconcileResult{
		UserID:   user.ID,
		Email:    user.Email,
		Password: password,
		Existing: true,
	}, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
