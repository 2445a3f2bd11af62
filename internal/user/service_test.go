package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/unilib/internal/model"
)

type mockUserRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByHemisID(ctx context.Context, hemisID string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }

func (m *mockUserRepo) UpdateRegistrySnapshot(ctx context.Context, user *model.User) error {
	return nil
}

func (m *mockUserRepo) UpdateHemisToken(ctx context.Context, userID, token string) error {
	return nil
}

func (m *mockUserRepo) UpdateAvatar(ctx context.Context, userID string, avatarData []byte, avatarMime string) error {
	return nil
}

func strPtr(s string) *string { return &s }

func TestGetProfile(t *testing.T) {
	want := &model.User{ID: "user-1", Email: "vali@example.uz", Name: "Aliyev Vali"}
	repo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			if id == "user-1" {
				return want, nil
			}
			return nil, nil
		},
	}

	service := NewService(repo)

	got, err := service.GetProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	service := NewService(&mockUserRepo{})

	_, err := service.GetProfile(context.Background(), "no-such-user")
	if err == nil {
		t.Fatal("expected error for missing user")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "USER_NOT_FOUND" {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}

func TestGetAvatar(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{
				ID:         id,
				AvatarData: []byte{0x89, 'P', 'N', 'G'},
				AvatarMime: strPtr("image/png"),
			}, nil
		},
	}

	service := NewService(repo)

	data, mime, err := service.GetAvatar(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAvatar() error = %v", err)
	}
	if len(data) != 4 {
		t.Errorf("len(data) = %d, want 4", len(data))
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png", mime)
	}
}

func TestGetAvatar_NoAvatarStored(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
	}

	service := NewService(repo)

	data, mime, err := service.GetAvatar(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAvatar() error = %v", err)
	}
	if data != nil || mime != "" {
		t.Errorf("expected empty result, got (%v, %q)", data, mime)
	}
}
