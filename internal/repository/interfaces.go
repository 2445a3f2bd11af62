// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/unilib/internal/model"
)

// UserRepository はローカルアカウントの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByHemisID はHEMIS IDでユーザーを検索する。見つからない場合はnilを返す。
	// hemis_idは非NULLのとき一意であり、照合の正規キーとして使用する。
	FindByHemisID(ctx context.Context, hemisID string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// 重複作成競合の解決（既存アカウントの特定）に使用する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// email/hemis_idの一意制約違反はIsDuplicateで判定できるエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateRegistrySnapshot はHEMISミラー項目・保存トークン・last_synced_atを更新する。
	// last_synced_atは前進方向にのみ更新される（過去方向への上書きはSQL側で拒否する）。
	UpdateRegistrySnapshot(ctx context.Context, user *model.User) error

	// UpdateHemisToken は保存済みHEMISアクセストークンのみを更新する。
	// 既存アカウントの高速ログイン経路で、プロフィール再取得なしにトークンを更新する。
	UpdateHemisToken(ctx context.Context, userID, token string) error

	// UpdateAvatar はアバター画像データを更新する。
	UpdateAvatar(ctx context.Context, userID string, avatarData []byte, avatarMime string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
