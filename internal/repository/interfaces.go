// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/bloghub/internal/model"
)

// ErrDuplicate は一意制約（email、username、slug）に違反したことを示す。
var ErrDuplicate = errors.New("duplicate key")

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。パスワードハッシュは含まない。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを取得する。
	// 認証に使うため、通常は読み出さないパスワードハッシュも含める。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// ExistsByUsername はusernameが使用済みかを返す。
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Create はアカウントを作成する。email/usernameの重複時はErrDuplicateを返す。
	Create(ctx context.Context, account *model.Account) error

	// Update はnil以外のフィールドのみを更新し、更新後のアカウントを返す。
	// 見つからない場合はnilを返す。重複時はErrDuplicateを返す。
	Update(ctx context.Context, id string, update model.AccountUpdate) (*model.Account, error)

	// SetAdminByEmail は管理者フラグを更新する。更新対象が存在したかを返す。
	SetAdminByEmail(ctx context.Context, email string, isAdmin bool) (bool, error)

	// DeleteByID は指定IDのアカウントを削除する。存在しない場合も成功とする。
	DeleteByID(ctx context.Context, id string) error

	// List はcreated_at順でページングしたアカウント一覧を返す。
	List(ctx context.Context, opts model.ListOptions) ([]*model.Account, error)

	// Count は全アカウント数を返す。
	Count(ctx context.Context) (int, error)

	// CountCreatedSince はsince以降に作成されたアカウント数を返す。
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// Create は投稿を作成する。slugの重複時はErrDuplicateを返す。
	Create(ctx context.Context, post *model.Post) error

	// Update は空文字以外のフィールドを更新し、更新後の投稿を返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, update model.PostUpdate) (*model.Post, error)

	// DeleteByID は指定IDの投稿を削除する。存在しない場合も成功とする。
	DeleteByID(ctx context.Context, id string) error

	// List は条件に一致する投稿をupdated_at順でページングして返す。
	List(ctx context.Context, filter model.PostFilter, opts model.ListOptions) ([]*model.Post, error)

	// Count は全投稿数を返す。
	Count(ctx context.Context) (int, error)

	// CountCreatedSince はsince以降に作成された投稿数を返す。
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// ListByPost は投稿に紐づくコメントを新しい順に返す。
	ListByPost(ctx context.Context, postID string) ([]*model.Comment, error)

	// ToggleLike はaccountIDのいいねを1文で原子的に反転する。
	// 未登録なら追加し、登録済みなら削除する。NumberOfLikesは常にlen(Likes)となる。
	// 見つからない場合はnilを返す。
	ToggleLike(ctx context.Context, commentID, accountID string) (*model.Comment, error)

	// UpdateContent はコメント本文を更新し、更新後のコメントを返す。
	// 見つからない場合はnilを返す。
	UpdateContent(ctx context.Context, id, content string) (*model.Comment, error)

	// DeleteByID は指定IDのコメントを削除する。存在しない場合も成功とする。
	DeleteByID(ctx context.Context, id string) error

	// List はcreated_at順でページングしたコメント一覧を返す。
	List(ctx context.Context, opts model.ListOptions) ([]*model.Comment, error)

	// Count は全コメント数を返す。
	Count(ctx context.Context) (int, error)

	// CountCreatedSince はsince以降に作成されたコメント数を返す。
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}
