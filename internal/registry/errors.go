package registry

import (
	"errors"
	"fmt"
)

// ErrorKind はレジストリ呼び出しの失敗種別を表す。
// 呼び出し側は文字列ではなくKindで分岐する。
type ErrorKind string

const (
	// KindInvalidCredentials は資格情報の拒否（ユーザー起因・終端）を示す。
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	// KindUnavailable はレジストリ到達不能（一時的・呼び出し側判断でリトライ可）を示す。
	KindUnavailable ErrorKind = "unavailable"
	// KindUnauthorized は保存済みトークンの失効・拒否を示す。
	KindUnauthorized ErrorKind = "unauthorized"
)

// Error はレジストリ境界で変換済みの失敗を表す。
// HTTP層の生エラーはこの型に変換されてから上位に渡る。
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hemis %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("hemis %s", e.Kind)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// kindOf はerrがレジストリエラーの場合にそのKindを返す。
func kindOf(err error) (ErrorKind, bool) {
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr.Kind, true
	}
	return "", false
}

// IsInvalidCredentials はerrが資格情報拒否かを判定する。
func IsInvalidCredentials(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindInvalidCredentials
}

// IsUnavailable はerrがレジストリ到達不能かを判定する。
func IsUnavailable(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindUnavailable
}

// IsUnauthorized はerrがトークン失効・拒否かを判定する。
func IsUnauthorized(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindUnauthorized
}
