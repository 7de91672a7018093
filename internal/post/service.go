// Package post はブログ記事の作成・一覧・更新・削除とRSS配信のドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bloghub/internal/authz"
	"github.com/hitoshi/bloghub/internal/model"
	"github.com/hitoshi/bloghub/internal/repository"
)

// Sanitizer は投稿本文のHTMLサニタイズインターフェース。
type Sanitizer interface {
	SanitizePost(rawHTML string) string
}

// URLValidator は外部URLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Input は投稿の作成・更新リクエストの内容。
type Input struct {
	Title    string
	Content  string
	Image    string
	Category string
}

// ListResult は投稿一覧の取得結果。
type ListResult struct {
	Posts     []*model.Post
	Total     int
	LastMonth int
}

// Service は投稿のサービス層。
type Service struct {
	posts     repository.PostRepository
	sanitizer Sanitizer
	urls      URLValidator
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(posts repository.PostRepository, sanitizer Sanitizer, urls URLValidator) *Service {
	return &Service{
		posts:     posts,
		sanitizer: sanitizer,
		urls:      urls,
		now:       time.Now,
	}
}

// Create は管理者が投稿を作成する。
func (s *Service) Create(ctx context.Context, caller authz.Identity, in Input) (*model.Post, error) {
	if err := authz.Require(authz.AdminOnly(caller), "You are not allowed to create a post"); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Content) == "" {
		return nil, model.NewValidationError("Please provide all required fields")
	}

	content := s.sanitizer.SanitizePost(in.Content)
	if strings.TrimSpace(content) == "" {
		return nil, model.NewValidationError("Please provide all required fields")
	}

	slug := Slugify(title)
	if slug == "" {
		return nil, model.NewValidationError("Title must contain letters or numbers")
	}

	image, err := s.validateImage(in.Image)
	if err != nil {
		return nil, err
	}
	if image == "" {
		image = model.DefaultPostImage
	}

	category := in.Category
	if category == "" {
		category = model.DefaultPostCategory
	}

	now := s.now()
	post := &model.Post{
		ID:        uuid.New().String(),
		UserID:    caller.AccountID,
		Title:     title,
		Content:   content,
		Image:     image,
		Category:  category,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewValidationError("A post with this title already exists")
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("slug", post.Slug),
		slog.String("account_id", caller.AccountID),
	)

	return post, nil
}

// List は条件に一致する投稿一覧と集計値を返す。
func (s *Service) List(ctx context.Context, filter model.PostFilter, opts model.ListOptions) (*ListResult, error) {
	posts, err := s.posts.List(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	total, err := s.posts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	lastMonth, err := s.posts.CountCreatedSince(ctx, model.OneMonthBefore(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent posts: %w", err)
	}

	return &ListResult{Posts: posts, Total: total, LastMonth: lastMonth}, nil
}

// Update は投稿の所有者または管理者が投稿を更新する。空のフィールドは変更しない。
// タイトルを変更してもslugは作成時のまま維持する。
func (s *Service) Update(ctx context.Context, caller authz.Identity, postID string, in Input) (*model.Post, error) {
	if _, err := s.authorize(ctx, caller, postID, "You are not allowed to update this post"); err != nil {
		return nil, err
	}

	update := model.PostUpdate{
		Title:    strings.TrimSpace(in.Title),
		Category: in.Category,
	}

	if in.Content != "" {
		update.Content = s.sanitizer.SanitizePost(in.Content)
		if strings.TrimSpace(update.Content) == "" {
			return nil, model.NewValidationError("Please provide all required fields")
		}
	}

	image, err := s.validateImage(in.Image)
	if err != nil {
		return nil, err
	}
	update.Image = image

	post, err := s.posts.Update(ctx, postID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	if post == nil {
		return nil, model.NewNotFoundError("Post Not Found")
	}

	slog.Info("post updated",
		slog.String("post_id", post.ID),
		slog.String("account_id", caller.AccountID),
	)

	return post, nil
}

// Delete は投稿の所有者または管理者が投稿を削除する。
// コメントは残り、cleanupワーカーが孤立コメントとして削除する。
func (s *Service) Delete(ctx context.Context, caller authz.Identity, postID string) error {
	if _, err := s.authorize(ctx, caller, postID, "You are not allowed to delete the post"); err != nil {
		return err
	}

	if err := s.posts.DeleteByID(ctx, postID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	slog.Info("post deleted",
		slog.String("post_id", postID),
		slog.String("account_id", caller.AccountID),
	)
	return nil
}

// authorize は投稿を取得し、呼び出し元が所有者または管理者であることを確認する。
func (s *Service) authorize(ctx context.Context, caller authz.Identity, postID, message string) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewNotFoundError("Post Not Found")
	}
	if err := authz.Require(authz.OwnerOrAdmin(caller, post.UserID), message); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Service) validateImage(image string) (string, error) {
	if image == "" {
		return "", nil
	}
	if err := s.urls.ValidateURL(image); err != nil {
		return "", model.NewValidationError("Invalid image URL")
	}
	return image, nil
}
