// Package user はユーザープロフィール参照のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/unilib/internal/model"
	"github.com/hitoshi/unilib/internal/repository"
)

// Service はユーザープロフィール参照のサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// GetProfile は指定ユーザーのプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// GetAvatar は指定ユーザーのキャッシュ済みアバター画像を返す。
// アバターが未保存の場合はnilデータと空MIMEを返す（エラーにはしない）。
func (s *Service) GetAvatar(ctx context.Context, userID string) ([]byte, string, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if user.AvatarData == nil {
		return nil, "", nil
	}

	mime := "application/octet-stream"
	if user.AvatarMime != nil && *user.AvatarMime != "" {
		mime = *user.AvatarMime
	}
	return user.AvatarData, mime, nil
}
