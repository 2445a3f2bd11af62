package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/unilib/internal/model"
)

// maxResponseSize はレジストリレスポンスの最大読み取りサイズ（1MB）。
const maxResponseSize = 1 * 1024 * 1024

// MetricsRecorder はレジストリ呼び出しの計測インターフェース。
type MetricsRecorder interface {
	RecordRegistryRequest(endpoint string, statusCode int)
	RecordRegistryLatency(endpoint string, duration time.Duration)
}

// ClientConfig はHEMISクライアントの設定。
// 環境から直接読まず、起動時にワイヤリングで渡す。
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client はHEMIS REST APIの低レベルHTTPクライアント。
// ネットワークI/Oのみを行い、ローカル状態を持たない。
// タイムアウトはHTTPクライアントに固定で設定し、内部でのリトライは行わない
// （リトライ判断は呼び出し側に委ねる）。
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	metrics    MetricsRecorder
}

// NewClient はClientを生成する。metricsはnil可。
func NewClient(config ClientConfig, metrics MetricsRecorder) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		metrics:    metrics,
	}
}

// hemisEnvelope はHEMIS APIの共通レスポンス形式。
type hemisEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// hemisLoginData はログインエンドポイントのdata部。
type hemisLoginData struct {
	Token string `json:"token"`
}

// hemisRef はHEMISの参照オブジェクト（学部・グループ等）。
type hemisRef struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// hemisAccount は/account/meのdata部。
// 任意フィールドはポインタで受け、欠落をnilのまま保持する。
type hemisAccount struct {
	StudentIDNumber string    `json:"student_id_number"`
	FullName        *string   `json:"full_name"`
	FirstName       *string   `json:"first_name"`
	SecondName      *string   `json:"second_name"`
	Email           *string   `json:"email"`
	Phone           *string   `json:"phone"`
	Image           *string   `json:"image"`
	Course          *int      `json:"course"`
	AvgGPA          *float64  `json:"avg_gpa"`
	Department      *hemisRef `json:"department"`
	Faculty         *hemisRef `json:"faculty"`
	Group           *hemisRef `json:"group"`
	EducationForm   *hemisRef `json:"educationForm"`
	Specialty       *hemisRef `json:"specialty"`
}

// Authenticate はHEMISのログインエンドポイントで資格情報を検証し、
// アクセストークンを返す。
// 4xxはKindInvalidCredentials（レジストリ自身のエラーメッセージを優先）、
// ネットワーク障害・タイムアウト・5xxはKindUnavailableとなる。
func (c *Client) Authenticate(ctx context.Context, creds model.RegistryCredentials) (string, error) {
	body, err := json.Marshal(map[string]string{
		"login":    creds.Login,
		"password": creds.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/auth/login", "", bytes.NewReader(body))
	if err != nil {
		return "", newError(KindUnavailable, "login request failed", err)
	}

	if status < 200 || status >= 300 {
		msg := registryErrorMessage(respBody)
		if status >= 400 && status < 500 {
			return "", newError(KindInvalidCredentials, msg, nil)
		}
		return "", newError(KindUnavailable, msg, nil)
	}

	var envelope hemisEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return "", newError(KindUnavailable, "malformed login response", err)
	}

	var data hemisLoginData
	if err := json.Unmarshal(envelope.Data, &data); err != nil || data.Token == "" {
		return "", newError(KindUnavailable, "login response contains no token", err)
	}

	return data.Token, nil
}

// FetchProfile はアクセストークンで現在ユーザーのプロフィールを取得する。
// 401/403はKindUnauthorized、ネットワーク障害はKindUnavailableとなる。
func (c *Client) FetchProfile(ctx context.Context, token string) (*model.RegistryProfile, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/account/me", token, nil)
	if err != nil {
		return nil, newError(KindUnavailable, "profile request failed", err)
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, newError(KindUnauthorized, registryErrorMessage(respBody), nil)
	}
	if status < 200 || status >= 300 {
		return nil, newError(KindUnavailable, registryErrorMessage(respBody), nil)
	}

	var envelope hemisEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, newError(KindUnavailable, "malformed profile response", err)
	}

	var account hemisAccount
	if err := json.Unmarshal(envelope.Data, &account); err != nil {
		return nil, newError(KindUnavailable, "malformed profile data", err)
	}

	return accountToProfile(&account), nil
}

// FetchDepartments は学部・学科一覧を取得する。
func (c *Client) FetchDepartments(ctx context.Context) ([]model.Department, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/data/department-list", "", nil)
	if err != nil {
		return nil, newError(KindUnavailable, "department list request failed", err)
	}

	if status < 200 || status >= 300 {
		return nil, newError(KindUnavailable, registryErrorMessage(respBody), nil)
	}

	var envelope hemisEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, newError(KindUnavailable, "malformed department list response", err)
	}

	var departments []model.Department
	if err := json.Unmarshal(envelope.Data, &departments); err != nil {
		return nil, newError(KindUnavailable, "malformed department list data", err)
	}

	return departments, nil
}

// do はHTTPリクエストを1回実行し、ステータスとボディを返す。
// メトリクスが設定されていればエンドポイント別にステータスとレイテンシを記録する。
func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordRegistryLatency(path, time.Since(start))
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRegistryRequest(path, 0)
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordRegistryRequest(path, resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// registryErrorMessage はエラーレスポンスからレジストリ自身のメッセージを取り出す。
// パースできない場合は汎用メッセージを返す。
func registryErrorMessage(body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return "registry request rejected"
}

// accountToProfile はHEMISのアカウントレコードをRegistryProfileに変換する。
func accountToProfile(a *hemisAccount) *model.RegistryProfile {
	p := &model.RegistryProfile{
		HemisID:   a.StudentIDNumber,
		FullName:  a.FullName,
		FirstName: a.FirstName,
		LastName:  a.SecondName,
		Email:     a.Email,
		Phone:     a.Phone,
		Course:    a.Course,
		GPA:       a.AvgGPA,
		AvatarURL: a.Image,
	}
	if a.Department != nil {
		p.DepartmentID = &a.Department.ID
		p.DepartmentName = &a.Department.Name
	}
	if a.Faculty != nil {
		p.FacultyName = &a.Faculty.Name
	}
	if a.Group != nil {
		p.GroupName = &a.Group.Name
	}
	if a.EducationForm != nil {
		p.EducationForm = &a.EducationForm.Name
	}
	if a.Specialty != nil {
		p.SpecialtyName = &a.Specialty.Name
	}
	return p
}

// compile-time interface check
var _ Provider = (*Client)(nil)
