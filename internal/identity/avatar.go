package identity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SSRFValidator はアバター取得時のSSRF防止インターフェース。
// internal/securityのSSRFGuardServiceが実装する。
type SSRFValidator interface {
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
	ValidateURL(rawURL string) error
}

// AvatarFetcherService はアバター画像取得のインターフェース。
type AvatarFetcherService interface {
	// FetchAvatar は指定URLからアバター画像を取得する。
	// アバターURLは外部レジストリ由来の値であるため、SSRF検証を通して取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さず、同期を止めない）。
	FetchAvatar(ctx context.Context, avatarURL string) (data []byte, mimeType string, err error)
}

// AvatarFetcher はアバター取得機能の実装。
type AvatarFetcher struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewAvatarFetcher はAvatarFetcherの新しいインスタンスを生成する。
func NewAvatarFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxSize int64) *AvatarFetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 2 * 1024 * 1024
	}
	return &AvatarFetcher{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// FetchAvatar は指定URLからアバター画像を取得する。
// 失敗はすべてログに残してnilを返す。アバターは補助データであり、
// 取得できないことは呼び出し側のエラーにしない。
func (f *AvatarFetcher) FetchAvatar(ctx context.Context, avatarURL string) ([]byte, string, error) {
	if avatarURL == "" {
		return nil, "", nil
	}

	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(avatarURL); err != nil {
			slog.Warn("アバター取得: SSRFブロック", "url", avatarURL, "error", err)
			return nil, "", nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		slog.Warn("アバター取得: リクエスト作成失敗", "url", avatarURL, "error", err)
		return nil, "", nil
	}
	req.Header.Set("User-Agent", "Unilib/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("アバター取得: HTTPリクエスト失敗", "url", avatarURL, "error", err)
		return nil, "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("アバター取得: HTTPステータス異常", "url", avatarURL, "status", resp.StatusCode)
		return nil, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		slog.Warn("アバター取得: レスポンス読み取り失敗", "url", avatarURL, "error", err)
		return nil, "", nil
	}

	if int64(len(body)) > f.maxSize {
		slog.Warn("アバター取得: サイズ超過", "url", avatarURL, "size", len(body))
		return nil, "", nil
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		slog.Warn("アバター取得: 画像以外のContent-Type", "url", avatarURL, "contentType", mimeType)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// getHTTPClient はHTTPクライアントを取得する。
func (f *AvatarFetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)
	}
	return &http.Client{Timeout: f.timeout}
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ AvatarFetcherService = (*AvatarFetcher)(nil)
