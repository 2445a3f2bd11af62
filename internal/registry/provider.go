// Package registry はHEMIS（大学学籍システム）との連携を提供する。
// 実APIを呼ぶClientと、開発・テスト用のMockProviderが同一のProvider契約を実装する。
package registry

import (
	"context"

	"github.com/hitoshi/unilib/internal/model"
)

// Provider はHEMISレジストリへのアクセスインターフェース。
// 実レジストリ（Client）とモック（MockProvider）の切り替えは
// 起動時のワイヤリングで1回だけ行い、呼び出しごとの分岐は行わない。
type Provider interface {
	// Authenticate はHEMISのログインエンドポイントで資格情報を検証し、
	// アクセストークンを返す。
	// 失敗はKindInvalidCredentialsまたはKindUnavailableのエラーとなる。
	Authenticate(ctx context.Context, creds model.RegistryCredentials) (string, error)

	// FetchProfile はアクセストークンで現在ユーザーのプロフィールを取得する。
	// 失敗はKindUnauthorizedまたはKindUnavailableのエラーとなる。
	FetchProfile(ctx context.Context, token string) (*model.RegistryProfile, error)

	// FetchDepartments は学部・学科一覧を取得する（補助的用途）。
	FetchDepartments(ctx context.Context) ([]model.Department, error)
}
