package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/unilib/internal/model"
	"github.com/hitoshi/unilib/internal/registry"
	"github.com/hitoshi/unilib/internal/repository"
)

// mockProvider はレジストリ呼び出し回数を数えるテスト用Provider。
type mockProvider struct {
	authenticateFunc     func(ctx context.Context, creds model.RegistryCredentials) (string, error)
	fetchProfileFunc     func(ctx context.Context, token string) (*model.RegistryProfile, error)
	fetchDepartmentsFunc func(ctx context.Context) ([]model.Department, error)

	authenticateCalls int
	fetchProfileCalls int
}

func (m *mockProvider) Authenticate(ctx context.Context, creds model.RegistryCredentials) (string, error) {
	m.authenticateCalls++
	if m.authenticateFunc != nil {
		return m.authenticateFunc(ctx, creds)
	}
	return registry.NewMockProvider().Authenticate(ctx, creds)
}

func (m *mockProvider) FetchProfile(ctx context.Context, token string) (*model.RegistryProfile, error) {
	m.fetchProfileCalls++
	if m.fetchProfileFunc != nil {
		return m.fetchProfileFunc(ctx, token)
	}
	return registry.NewMockProvider().FetchProfile(ctx, token)
}

func (m *mockProvider) FetchDepartments(ctx context.Context) ([]model.Department, error) {
	if m.fetchDepartmentsFunc != nil {
		return m.fetchDepartmentsFunc(ctx)
	}
	return nil, nil
}

// mockUserRepo はUserRepositoryのテスト用実装。
type mockUserRepo struct {
	findByIDFunc               func(ctx context.Context, id string) (*model.User, error)
	findByHemisIDFunc          func(ctx context.Context, hemisID string) (*model.User, error)
	findByEmailFunc            func(ctx context.Context, email string) (*model.User, error)
	createFunc                 func(ctx context.Context, user *model.User) error
	updateRegistrySnapshotFunc func(ctx context.Context, user *model.User) error
	updateHemisTokenFunc       func(ctx context.Context, userID, token string) error
	updateAvatarFunc           func(ctx context.Context, userID string, avatarData []byte, avatarMime string) error

	createCalls int
	created     []*model.User
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByHemisID(ctx context.Context, hemisID string) (*model.User, error) {
	if m.findByHemisIDFunc != nil {
		return m.findByHemisIDFunc(ctx, hemisID)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	m.createCalls++
	m.created = append(m.created, user)
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateRegistrySnapshot(ctx context.Context, user *model.User) error {
	if m.updateRegistrySnapshotFunc != nil {
		return m.updateRegistrySnapshotFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateHemisToken(ctx context.Context, userID, token string) error {
	if m.updateHemisTokenFunc != nil {
		return m.updateHemisTokenFunc(ctx, userID, token)
	}
	return nil
}

func (m *mockUserRepo) UpdateAvatar(ctx context.Context, userID string, avatarData []byte, avatarMime string) error {
	if m.updateAvatarFunc != nil {
		return m.updateAvatarFunc(ctx, userID, avatarData, avatarMime)
	}
	return nil
}

// mockSessionRepo はSessionRepositoryのテスト用実装。
type mockSessionRepo struct {
	createFunc       func(ctx context.Context, session *model.Session) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFunc   func(ctx context.Context, id string) error
	deleteByUserFunc func(ctx context.Context, userID string) error

	createdSessions []*model.Session
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	m.createdSessions = append(m.createdSessions, session)
	if m.createFunc != nil {
		return m.createFunc(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFunc != nil {
		return m.deleteByIDFunc(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserFunc != nil {
		return m.deleteByUserFunc(ctx, userID)
	}
	return nil
}

var (
	_ repository.UserRepository    = (*mockUserRepo)(nil)
	_ repository.SessionRepository = (*mockSessionRepo)(nil)
	_ registry.Provider            = (*mockProvider)(nil)
)

func testConfig() ServiceConfig {
	return ServiceConfig{
		SessionMaxAge:         86400,
		EmailDomain:           "hemis.uz",
		DerivedPasswordSecret: "test-secret",
	}
}

func validCreds() model.RegistryCredentials {
	return model.RegistryCredentials{Login: "aliyev_vali", Password: "hemis2024"}
}

func TestReconcile_ExistingAccount_FastPath(t *testing.T) {
	existing := &model.User{ID: "user-1", Email: "vali.aliyev@example.uz"}
	provider := &mockProvider{}
	userRepo := &mockUserRepo{
		findByHemisIDFunc: func(ctx context.Context, hemisID string) (*model.User, error) {
			if hemisID != "368211100101" {
				t.Errorf("hemisID = %q, want 368211100101", hemisID)
			}
			return existing, nil
		},
	}

	service := NewService(provider, userRepo, &mockSessionRepo{}, nil, testConfig())

	result, err := service.Reconcile(context.Background(), validCreds())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if !result.Existing {
		t.Error("Existing = false, want true")
	}
	if result.Email != existing.Email {
		t.Errorf("Email = %q, want %q", result.Email, existing.Email)
	}
	// 既存アカウントはレジストリ呼び出し1回（認証のみ）で完結する
	if provider.authenticateCalls != 1 {
		t.Errorf("authenticateCalls = %d, want 1", provider.authenticateCalls)
	}
	if provider.fetchProfileCalls != 0 {
		t.Errorf("fetchProfileCalls = %d, want 0", provider.fetchProfileCalls)
	}
	if userRepo.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", userRepo.createCalls)
	}
}

func TestReconcile_NewAccount_Provisioned(t *testing.T) {
	provider := &mockProvider{}
	userRepo := &mockUserRepo{}

	service := NewService(provider, userRepo, &mockSessionRepo{}, nil, testConfig())

	result, err := service.Reconcile(context.Background(), validCreds())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if result.Existing {
		t.Error("Existing = true, want false")
	}
	// 新規は認証＋プロフィール取得の2回
	if provider.authenticateCalls != 1 || provider.fetchProfileCalls != 1 {
		t.Errorf("registry calls = (%d, %d), want (1, 1)",
			provider.authenticateCalls, provider.fetchProfileCalls)
	}
	if userRepo.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", userRepo.createCalls)
	}

	created := userRepo.created[0]
	if created.HemisID == nil || *created.HemisID != "368211100101" {
		t.Errorf("HemisID = %v, want 368211100101", created.HemisID)
	}
	if created.HemisToken == nil || *created.HemisToken == "" {
		t.Error("HemisToken should be stored on provisioning")
	}
	if created.Name != "Aliyev Vali" {
		t.Errorf("Name = %q, want normalized %q", created.Name, "Aliyev Vali")
	}
	if created.PasswordHash == "" || created.PasswordHash == result.Password {
		t.Error("password must be stored hashed, not in plain text")
	}
	if created.LastSyncedAt == nil {
		t.Error("LastSyncedAt should be set: the profile was just fetched")
	}
}

func TestReconcile_DuplicateCreate_TreatedAsExisting(t *testing.T) {
	winner := &model.User{ID: "user-racing-winner", Email: "vali.aliyev@example.uz"}
	provider := &mockProvider{}
	userRepo := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			return fmt.Errorf("insert failed: %w", &pq.Error{Code: "23505"})
		},
	}
	// 競合解決時の再検索では勝者側のレコードが見える
	userRepo.findByHemisIDFunc = func(ctx context.Context, hemisID string) (*model.User, error) {
		if userRepo.createCalls > 0 {
			return winner, nil
		}
		return nil, nil
	}

	service := NewService(provider, userRepo, &mockSessionRepo{}, nil, testConfig())

	result, err := service.Reconcile(context.Background(), validCreds())
	if err != nil {
		t.Fatalf("duplicate create must resolve as success, got error: %v", err)
	}
	if !result.Existing {
		t.Error("Existing = false, want true (idempotent reconciliation)")
	}
	if result.UserID != winner.ID {
		t.Errorf("UserID = %q, want racing winner %q", result.UserID, winner.ID)
	}
}

func TestReconcile_EmailCollision_ResolvedByEmail(t *testing.T) {
	// 別経路で作られた同一メールのアカウント（hemis_id未設定）
	preexisting := &model.User{ID: "user-legacy", Email: "vali.aliyev@example.uz"}
	provider := &mockProvider{}
	userRepo := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			return &pq.Error{Code: "23505"}
		},
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			if email != preexisting.Email {
				t.Errorf("email = %q, want %q", email, preexisting.Email)
			}
			return preexisting, nil
		},
	}

	service := NewService(provider, userRepo, &mockSessionRepo{}, nil, testConfig())

	result, err := service.Reconcile(context.Background(), validCreds())
	if err != nil {
		t.Fatalf("email collision must resolve as success, got error: %v", err)
	}
	if !result.Existing || result.UserID != preexisting.ID {
		t.Errorf("result = %+v, want existing legacy account", result)
	}
}

func TestReconcile_InvalidCredentials_Surfaced(t *testing.T) {
	provider := &mockProvider{}
	service := NewService(provider, &mockUserRepo{}, &mockSessionRepo{}, nil, testConfig())

	_, err := service.Reconcile(context.Background(),
		model.RegistryCredentials{Login: "aliyev_vali", Password: "wrong"})
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
	if !registry.IsInvalidCredentials(err) {
		t.Errorf("expected invalid credentials error, got %v", err)
	}
	if provider.fetchProfileCalls != 0 {
		t.Error("failed authentication must not fetch a profile")
	}
}

func TestReconcile_RegistryDown_Surfaced(t *testing.T) {
	provider := &mockProvider{
		authenticateFunc: func(ctx context.Context, creds model.RegistryCredentials) (string, error) {
			return "", &registry.Error{Kind: registry.KindUnavailable, Message: "connection refused"}
		},
	}
	service := NewService(provider, &mockUserRepo{}, &mockSessionRepo{}, nil, testConfig())

	_, err := service.Reconcile(context.Background(), validCreds())
	if !registry.IsUnavailable(err) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestReconcile_ProfileFetchFailure_Terminal(t *testing.T) {
	provider := &mockProvider{
		fetchProfileFunc: func(ctx context.Context, token string) (*model.RegistryProfile, error) {
			return nil, &registry.Error{Kind: registry.KindUnavailable, Message: "timeout"}
		},
	}
	service := NewService(provider, &mockUserRepo{}, &mockSessionRepo{}, nil, testConfig())

	_, err := service.Reconcile(context.Background(), validCreds())
	if !errors.Is(err, ErrProfileFetchFailed) {
		t.Errorf("expected ErrProfileFetchFailed, got %v", err)
	}
}

func TestReconcile_SynthesizedEmail(t *testing.T) {
	// karimova_nodiraのモックプロフィールにはemailが無い
	provider := &mockProvider{}
	userRepo := &mockUserRepo{}
	service := NewService(provider, userRepo, &mockSessionRepo{}, nil, testConfig())

	result, err := service.Reconcile(context.Background(),
		model.RegistryCredentials{Login: "karimova_nodira", Password: "hemis2024"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	want := "karimova_nodira@hemis.uz"
	if result.Email != want {
		t.Errorf("Email = %q, want synthesized %q", result.Email, want)
	}
}

func TestDerivePassword_Deterministic(t *testing.T) {
	service := NewService(&mockProvider{}, &mockUserRepo{}, &mockSessionRepo{}, nil, testConfig())

	p1 := service.derivePassword("aliyev_vali")
	p2 := service.derivePassword("aliyev_vali")
	p3 := service.derivePassword("karimova_nodira")

	if p1 != p2 {
		t.Error("derived password must be deterministic for the same login")
	}
	if p1 == p3 {
		t.Error("different logins must derive different passwords")
	}
	if len(p1) != derivedPasswordLength {
		t.Errorf("len(password) = %d, want %d", len(p1), derivedPasswordLength)
	}
}

func TestDerivePassword_SecretDependent(t *testing.T) {
	config1 := testConfig()
	config2 := testConfig()
	config2.DerivedPasswordSecret = "other-secret"

	s1 := NewService(&mockProvider{}, &mockUserRepo{}, &mockSessionRepo{}, nil, config1)
	s2 := NewService(&mockProvider{}, &mockUserRepo{}, &mockSessionRepo{}, nil, config2)

	if s1.derivePassword("aliyev_vali") == s2.derivePassword("aliyev_vali") {
		t.Error("derived password must depend on the application secret")
	}
}

func TestHandleLogin_MintsSession(t *testing.T) {
	sessionRepo := &mockSessionRepo{}
	service := NewService(&mockProvider{}, &mockUserRepo{}, sessionRepo, nil, testConfig())

	result, session, err := service.HandleLogin(context.Background(), validCreds())
	if err != nil {
		t.Fatalf("HandleLogin() error = %v", err)
	}
	if session == nil || session.ID == "" {
		t.Fatal("expected a session with non-empty ID")
	}
	if session.UserID != result.UserID {
		t.Errorf("session.UserID = %q, want %q", session.UserID, result.UserID)
	}

	wantExpiry := time.Now().Add(24 * time.Hour)
	if session.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || session.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about %v", session.ExpiresAt, wantExpiry)
	}
	if len(sessionRepo.createdSessions) != 1 {
		t.Errorf("created sessions = %d, want 1", len(sessionRepo.createdSessions))
	}
}

func TestGetCurrentUser(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "vali@example.uz"}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return &model.Session{ID: id, UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			if id == user.ID {
				return user, nil
			}
			return nil, nil
		},
	}

	service := NewService(&mockProvider{}, userRepo, sessionRepo, nil, testConfig())

	got, err := service.GetCurrentUser(context.Background(), "valid-session")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("user ID = %q, want %q", got.ID, user.ID)
	}

	if _, err := service.GetCurrentUser(context.Background(), "expired-session"); err == nil {
		t.Error("expected error for unknown session")
	}

	if _, err := service.GetCurrentUser(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestLogout(t *testing.T) {
	deleted := ""
	sessionRepo := &mockSessionRepo{
		deleteByIDFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	service := NewService(&mockProvider{}, &mockUserRepo{}, sessionRepo, nil, testConfig())

	if err := service.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "session-1" {
		t.Errorf("deleted session = %q, want session-1", deleted)
	}

	if err := service.Logout(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}
