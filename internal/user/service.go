// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
)

// AnonymizedLastName は匿名化後の姓。
const AnonymizedLastName = "X"

// Service はユーザー管理のサービス層。
// 匿名化（忘れられる権利）のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	bcryptCost  int
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// bcryptCostが0の場合はbcrypt.DefaultCostを使用する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	bcryptCost int,
) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		bcryptCost:  bcryptCost,
		now:         time.Now,
	}
}

// Anonymize はユーザーの個人情報を上書きし、ログインできない状態にする。
// 予約は削除せず、所有者IDも変わらない。匿名化後は他の認証済みユーザーがその予約を削除できる。
// すでに匿名化済みの場合もセッションを削除して成功を返す。
func (s *Service) Anonymize(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if !user.IsAnonymized() {
		slog.Info("匿名化処理を開始します", slog.String("user_id", userID))

		hash, err := unusablePasswordHash(s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("パスワードの無効化に失敗しました: %w", err)
		}

		now := s.now()
		user.Name = model.AnonymizedName(user.ID)
		user.LastName = AnonymizedLastName
		user.Email = model.AnonymizedEmail(user.ID)
		user.PasswordHash = hash
		user.Status = model.AccountStatusAnonymized
		user.AnonymizedAt = &now
		user.UpdatedAt = now

		if err := s.userRepo.Anonymize(ctx, user); err != nil {
			return nil, fmt.Errorf("ユーザーの匿名化に失敗しました: %w", err)
		}
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return nil, fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("匿名化処理が完了しました", slog.String("user_id", userID))
	return user, nil
}

// unusablePasswordHash は誰も知らないランダムな値のbcryptハッシュを返す。
func unusablePasswordHash(cost int) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// bcryptは72バイトまでしか扱わないため32バイトで十分
	hash, err := bcrypt.GenerateFromPassword(b, cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
