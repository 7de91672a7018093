// Package account はアカウントのプロフィール管理と一覧取得のドメインロジックを提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/bloghub/internal/authz"
	"github.com/hitoshi/bloghub/internal/model"
	"github.com/hitoshi/bloghub/internal/repository"
)

// MinPasswordLength はプロフィール更新時のパスワード最小文字数。
const MinPasswordLength = 6

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// PasswordHasher はパスワードのハッシュ化インターフェース。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// URLValidator は外部URLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ProfileInput はプロフィール更新のリクエスト内容。空文字のフィールドは変更しない。
type ProfileInput struct {
	Username       string
	Email          string
	Password       string
	ProfilePicture string
}

// ListResult はアカウント一覧の取得結果。
type ListResult struct {
	Accounts  []*model.Account
	Total     int
	LastMonth int
}

// Service はアカウント管理のサービス層。
type Service struct {
	accounts repository.AccountRepository
	hasher   PasswordHasher
	urls     URLValidator
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(accounts repository.AccountRepository, hasher PasswordHasher, urls URLValidator) *Service {
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		urls:     urls,
		now:      time.Now,
	}
}

// UpdateProfile は本人のプロフィールを更新する。
// 検証順序: 本人確認 → パスワード → username → プロフィール画像 → 更新
func (s *Service) UpdateProfile(ctx context.Context, caller authz.Identity, targetID string, in ProfileInput) (*model.Account, error) {
	if err := authz.Require(authz.SelfOnly(caller, targetID), "Unauthorised"); err != nil {
		return nil, err
	}

	var update model.AccountUpdate

	if in.Password != "" {
		if len(in.Password) < MinPasswordLength {
			return nil, model.NewValidationError("Password must be atleast 6 characters")
		}
		hashed, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		update.Password = &hashed
	}

	if in.Username != "" {
		if strings.Contains(in.Username, " ") {
			return nil, model.NewValidationError("Username cannot contain spaces")
		}
		if !usernamePattern.MatchString(in.Username) {
			return nil, model.NewValidationError("Username can only contain letters and numbers")
		}
		update.Username = &in.Username
	}

	if in.Email != "" {
		update.Email = &in.Email
	}

	if in.ProfilePicture != "" {
		if err := s.urls.ValidateURL(in.ProfilePicture); err != nil {
			return nil, model.NewValidationError("Invalid profile picture URL")
		}
		update.ProfilePicture = &in.ProfilePicture
	}

	account, err := s.accounts.Update(ctx, targetID, update)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateAccountError()
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	if account == nil {
		return nil, model.NewNotFoundError("User Not Found")
	}

	slog.Info("account profile updated",
		slog.String("account_id", account.ID),
		slog.Bool("password_changed", update.Password != nil),
	)

	return account, nil
}

// DeleteProfile は本人が自分のアカウントを削除する。管理者でも他人は削除できない。
func (s *Service) DeleteProfile(ctx context.Context, caller authz.Identity, targetID string) error {
	if err := authz.Require(authz.SelfOnly(caller, targetID), "Unauthorised"); err != nil {
		return err
	}
	return s.delete(ctx, caller, targetID)
}

// DeleteAccount は本人または管理者がアカウントを削除する。
func (s *Service) DeleteAccount(ctx context.Context, caller authz.Identity, targetID string) error {
	if err := authz.Require(authz.SelfOrAdmin(caller, targetID), "You are not allowed to delete this users"); err != nil {
		return err
	}
	return s.delete(ctx, caller, targetID)
}

// delete はアカウントを削除する。投稿とコメントは残し、孤立コメントはcleanupワーカーが削除する。
func (s *Service) delete(ctx context.Context, caller authz.Identity, targetID string) error {
	if err := s.accounts.DeleteByID(ctx, targetID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	slog.Info("account deleted",
		slog.String("account_id", targetID),
		slog.String("deleted_by", caller.AccountID),
	)
	return nil
}

// ListAccounts は管理者向けにアカウント一覧と集計値を返す。
func (s *Service) ListAccounts(ctx context.Context, caller authz.Identity, opts model.ListOptions) (*ListResult, error) {
	if err := authz.Require(authz.AdminOnly(caller), "You are not allowed to see all users"); err != nil {
		return nil, err
	}

	accounts, err := s.accounts.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	total, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}

	lastMonth, err := s.accounts.CountCreatedSince(ctx, model.OneMonthBefore(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent accounts: %w", err)
	}

	return &ListResult{Accounts: accounts, Total: total, LastMonth: lastMonth}, nil
}

// GetAccount は指定IDのアカウントを返す。
func (s *Service) GetAccount(ctx context.Context, targetID string) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewNotFoundError("User Not Found")
	}
	return account, nil
}
