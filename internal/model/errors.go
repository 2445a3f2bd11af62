// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, registry, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeRegistryUnavailable = "REGISTRY_UNAVAILABLE"
	ErrCodeProvisioningFailed  = "PROVISIONING_FAILED"
	ErrCodeNotHemisLinked      = "NOT_HEMIS_LINKED"
	ErrCodeHemisTokenExpired   = "HEMIS_TOKEN_EXPIRED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
)

// NewInvalidCredentialsError はHEMIS認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ログインIDまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "HEMISのログインIDとパスワードを確認してください。",
	}
}

// NewRegistryUnavailableError はHEMIS接続不可エラーを生成する。
func NewRegistryUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeRegistryUnavailable,
		Message:  "学籍システム（HEMIS）に接続できませんでした。",
		Category: "registry",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProvisioningFailedError はアカウント作成失敗エラーを生成する。
// プロフィール取得失敗・作成失敗のいずれも、ユーザーには同一の汎用メッセージを返す。
// 内部の詳細（HTTPステータス等）はログのみに記録する。
func NewProvisioningFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProvisioningFailed,
		Message:  "アカウントを作成できませんでした。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。解決しない場合は図書館窓口にお問い合わせください。",
	}
}

// NewNotHemisLinkedError はHEMIS未紐付けアカウントへの同期要求エラーを生成する。
func NewNotHemisLinkedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotHemisLinked,
		Message:  "このアカウントはHEMISに紐付いていません。",
		Category: "registry",
		Action:   "HEMISアカウントでログインし直してください。",
	}
}

// NewHemisTokenExpiredError は保存済みHEMISトークンの失効エラーを生成する。
func NewHemisTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeHemisTokenExpired,
		Message:  "HEMISの認証トークンが失効しています。",
		Category: "registry",
		Action:   "HEMISアカウントでログインし直すと再同期されます。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidRequestError はリクエスト形式不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
