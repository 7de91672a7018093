// Package comment は投稿へのコメントといいねのドメインロジックを提供する。
package comment

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/bloghub/internal/authz"
	"github.com/hitoshi/bloghub/internal/model"
	"github.com/hitoshi/bloghub/internal/repository"
)

// Sanitizer はコメント本文の無害化インターフェース。
type Sanitizer interface {
	SanitizeComment(text string) string
}

// PostFinder は投稿の存在確認に使うインターフェース。
type PostFinder interface {
	FindByID(ctx context.Context, id string) (*model.Post, error)
}

// CreateInput はコメント作成リクエストの内容。
// UserIDはリクエストボディの値で、呼び出し元と一致しなければならない。
type CreateInput struct {
	Content string
	PostID  string
	UserID  string
}

// ListResult は管理者向けコメント一覧の取得結果。
type ListResult struct {
	Comments  []*model.Comment
	Total     int
	LastMonth int
}

// Service はコメントのサービス層。
type Service struct {
	comments  repository.CommentRepository
	posts     PostFinder
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(comments repository.CommentRepository, posts PostFinder, sanitizer Sanitizer) *Service {
	return &Service{
		comments:  comments,
		posts:     posts,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Create はコメントを作成する。
func (s *Service) Create(ctx context.Context, caller authz.Identity, in CreateInput) (*model.Comment, error) {
	if err := authz.Require(authz.SelfOnly(caller, in.UserID), "You are not allowed to create this comment"); err != nil {
		return nil, err
	}
	if in.PostID == "" {
		return nil, model.NewValidationError("Please provide all required fields")
	}

	content, err := s.cleanContent(in.Content)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.FindByID(ctx, in.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewNotFoundError("Post Not Found")
	}

	now := s.now()
	comment := &model.Comment{
		ID:        uuid.New().String(),
		Content:   content,
		PostID:    in.PostID,
		UserID:    caller.AccountID,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	slog.Info("comment created",
		slog.String("comment_id", comment.ID),
		slog.String("post_id", comment.PostID),
		slog.String("account_id", caller.AccountID),
	)

	return comment, nil
}

// ListByPost は投稿のコメントを新しい順に返す。認証は不要。
func (s *Service) ListByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// ToggleLike は呼び出し元のいいねを反転し、更新後のコメントを返す。
func (s *Service) ToggleLike(ctx context.Context, caller authz.Identity, commentID string) (*model.Comment, error) {
	if !caller.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}

	comment, err := s.comments.ToggleLike(ctx, commentID, caller.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}
	if comment == nil {
		return nil, model.NewNotFoundError("Comment Not Found")
	}
	return comment, nil
}

// Edit はコメントの所有者または管理者が本文を更新する。
func (s *Service) Edit(ctx context.Context, caller authz.Identity, commentID, content string) (*model.Comment, error) {
	if err := s.authorize(ctx, caller, commentID); err != nil {
		return nil, err
	}

	cleaned, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}

	comment, err := s.comments.UpdateContent(ctx, commentID, cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	if comment == nil {
		return nil, model.NewNotFoundError("Comment Not Found")
	}
	return comment, nil
}

// Delete はコメントの所有者または管理者がコメントを削除する。
func (s *Service) Delete(ctx context.Context, caller authz.Identity, commentID string) error {
	if err := s.authorize(ctx, caller, commentID); err != nil {
		return err
	}

	if err := s.comments.DeleteByID(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	slog.Info("comment deleted",
		slog.String("comment_id", commentID),
		slog.String("account_id", caller.AccountID),
	)
	return nil
}

// ListAll は管理者向けに全コメントと集計値を返す。
func (s *Service) ListAll(ctx context.Context, caller authz.Identity, opts model.ListOptions) (*ListResult, error) {
	if err := authz.Require(authz.AdminOnly(caller), "You are not authorised to access the comments"); err != nil {
		return nil, err
	}

	comments, err := s.comments.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	total, err := s.comments.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}

	lastMonth, err := s.comments.CountCreatedSince(ctx, model.OneMonthBefore(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent comments: %w", err)
	}

	return &ListResult{Comments: comments, Total: total, LastMonth: lastMonth}, nil
}

// authorize はコメントの所有者または管理者であることを確認する。
// 編集と削除で同じメッセージを返す。
func (s *Service) authorize(ctx context.Context, caller authz.Identity, commentID string) error {
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("failed to find comment: %w", err)
	}
	if comment == nil {
		return model.NewNotFoundError("Comment Not Found")
	}
	return authz.Require(authz.OwnerOrAdmin(caller, comment.UserID), "You are not allowed to edit this comment")
}

func (s *Service) cleanContent(raw string) (string, error) {
	content := s.sanitizer.SanitizeComment(raw)
	if content == "" {
		return "", model.NewValidationError("Please provide all required fields")
	}
	if utf8.RuneCountInString(content) > model.CommentMaxLength {
		return "", model.NewValidationError(fmt.Sprintf("Comment must be at most %d characters", model.CommentMaxLength))
	}
	return content, nil
}
