// Package refresh はHEMISミラー項目のオンデマンド再同期を提供する。
// 常駐スケジューラは存在せず、ログイン後や明示的なトリガーで呼ばれた際に
// 鮮度チェックを通過した場合にのみレジストリへアクセスする。
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/unilib/internal/identity"
	"github.com/hitoshi/unilib/internal/model"
	"github.com/hitoshi/unilib/internal/registry"
	"github.com/hitoshi/unilib/internal/repository"
)

var (
	// ErrUserNotFound は対象ユーザーが存在しないことを表す。
	ErrUserNotFound = errors.New("user not found")

	// ErrNotEligible はアカウントがHEMIS連携されていないことを表す。
	// 同期対象外であり、エラーというより恒常的なスキップ条件。
	ErrNotEligible = errors.New("account is not registry-linked")
)

// 同期スキップ・実行理由。レスポンスのmessageにそのまま使われる。
const (
	ReasonNotDue       = "not due"
	ReasonTokenExpired = "token expired"
	ReasonSynced       = "synced"
)

// MetricsRecorder は同期試行の計測インターフェース。
type MetricsRecorder interface {
	RecordSync(performed bool)
}

// Result はMaybeSyncの結果。
type Result struct {
	Performed    bool
	Reason       string
	LastSyncedAt *time.Time
}

// ServiceConfig は同期サービスの設定。
type ServiceConfig struct {
	Staleness   time.Duration // この時間以内に同期済みならスキップ
	EmailDomain string
}

// Service はHEMISプロフィールの再同期ロジックを提供する。
type Service struct {
	provider registry.Provider
	userRepo repository.UserRepository
	avatars  identity.AvatarFetcherService
	metrics  MetricsRecorder
	config   ServiceConfig
}

// NewService はServiceを生成する。avatarsとmetricsはnil可。
func NewService(
	provider registry.Provider,
	userRepo repository.UserRepository,
	avatars identity.AvatarFetcherService,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	if config.Staleness <= 0 {
		config.Staleness = 24 * time.Hour
	}
	return &Service{
		provider: provider,
		userRepo: userRepo,
		avatars:  avatars,
		metrics:  metrics,
		config:   config,
	}
}

// MaybeSync は鮮度チェックを通過した場合にのみHEMISプロフィールを再取得し、
// ミラー項目を更新する。
//
// last_synced_atからの経過時間が閾値未満ならネットワーク呼び出しなしで
// スキップする（NULLは「無限に古い」として扱う）。保存トークンがレジストリに
// 拒否された場合もエラーではなくスキップとして返す。失効は想定内の状態であり、
// 次回ログインで新しいトークンが保存されれば自然に回復する。
func (s *Service) MaybeSync(ctx context.Context, userID string) (*Result, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsHemisLinked() {
		return nil, ErrNotEligible
	}

	if user.LastSyncedAt != nil && time.Since(*user.LastSyncedAt) < s.config.Staleness {
		s.recordSync(false)
		return &Result{Performed: false, Reason: ReasonNotDue, LastSyncedAt: user.LastSyncedAt}, nil
	}

	profile, err := s.provider.FetchProfile(ctx, *user.HemisToken)
	if err != nil {
		if registry.IsUnauthorized(err) {
			slog.Info("sync skipped: stored hemis token rejected",
				slog.String("user_id", user.ID),
			)
			s.recordSync(false)
			return &Result{Performed: false, Reason: ReasonTokenExpired, LastSyncedAt: user.LastSyncedAt}, nil
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	login := ""
	if user.HemisLogin != nil {
		login = *user.HemisLogin
	}
	fields := identity.MapProfile(profile, login, s.config.EmailDomain)

	now := time.Now()
	updated := s.applyFields(user, fields, now)
	if err := s.userRepo.UpdateRegistrySnapshot(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to write registry snapshot: %w", err)
	}

	s.fetchAvatar(ctx, user.ID, fields.AvatarURL)

	slog.Info("hemis profile synced",
		slog.String("user_id", user.ID),
		slog.Time("last_synced_at", now),
	)
	s.recordSync(true)
	return &Result{Performed: true, Reason: ReasonSynced, LastSyncedAt: &now}, nil
}

// applyFields はマッピング済みフィールドを既存レコードに反映した更新用コピーを返す。
func (s *Service) applyFields(user *model.User, fields identity.AccountFields, syncedAt time.Time) *model.User {
	updated := *user
	updated.Email = fields.Email
	updated.Name = fields.Name
	updated.DepartmentID = fields.DepartmentID
	updated.DepartmentName = fields.DepartmentName
	updated.DepartmentCode = fields.DepartmentCode
	updated.FacultyName = fields.FacultyName
	updated.GroupName = fields.GroupName
	updated.EducationForm = fields.EducationForm
	updated.SpecialtyName = fields.SpecialtyName
	updated.Course = fields.Course
	updated.GPA = fields.GPA
	updated.AvatarURL = fields.AvatarURL
	updated.LastSyncedAt = &syncedAt
	return &updated
}

// fetchAvatar はアバター画像をベストエフォートで取得・保存する。
// 失敗しても同期自体は成功扱いのまま。
func (s *Service) fetchAvatar(ctx context.Context, userID string, avatarURL *string) {
	if s.avatars == nil || avatarURL == nil || *avatarURL == "" {
		return
	}

	data, mimeType, err := s.avatars.FetchAvatar(ctx, *avatarURL)
	if err != nil || data == nil {
		return
	}

	if err := s.userRepo.UpdateAvatar(ctx, userID, data, mimeType); err != nil {
		slog.Warn("failed to store avatar",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) recordSync(performed bool) {
	if s.metrics != nil {
		s.metrics.RecordSync(performed)
	}
}
