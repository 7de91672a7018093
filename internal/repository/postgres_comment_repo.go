package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/bloghub/internal/model"
)

const commentColumns = `id, content, post_id, user_id, likes, number_of_likes, created_at, updated_at`

func scanComment(row rowScanner) (*model.Comment, error) {
	c := &model.Comment{}
	var likes pq.StringArray
	if err := row.Scan(&c.ID, &c.Content, &c.PostID, &c.UserID, &likes, &c.NumberOfLikes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Likes = []string(likes)
	if c.Likes == nil {
		c.Likes = []string{}
	}
	return c, nil
}

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	comment, err := scanComment(r.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment by ID: %w", err)
	}
	return comment, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	likes := comment.Likes
	if likes == nil {
		likes = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, content, post_id, user_id, likes, number_of_likes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		comment.ID, comment.Content, comment.PostID, comment.UserID,
		pq.Array(likes), len(likes), comment.CreatedAt, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// ListByPost は投稿に紐づくコメントを新しい順に返す。
func (r *PostgresCommentRepo) ListByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY created_at DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments by post: %w", err)
	}
	return collectComments(rows)
}

// ToggleLike はいいねの追加と削除を1つのUPDATE文で行う。
// 同一行への同時実行は行ロックで直列化されるため、likesとnumber_of_likesは常に一致する。
func (r *PostgresCommentRepo) ToggleLike(ctx context.Context, commentID, accountID string) (*model.Comment, error) {
	comment, err := scanComment(r.db.QueryRowContext(ctx,
		`UPDATE comments SET
		     likes = CASE WHEN $2 = ANY(likes) THEN array_remove(likes, $2) ELSE array_append(likes, $2) END,
		     number_of_likes = cardinality(CASE WHEN $2 = ANY(likes) THEN array_remove(likes, $2) ELSE array_append(likes, $2) END),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+commentColumns,
		commentID, accountID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}
	return comment, nil
}

// UpdateContent はコメント本文を更新する。
func (r *PostgresCommentRepo) UpdateContent(ctx context.Context, id, content string) (*model.Comment, error) {
	comment, err := scanComment(r.db.QueryRowContext(ctx,
		`UPDATE comments SET content = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+commentColumns,
		id, content,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return comment, nil
}

// DeleteByID は指定IDのコメントを削除する。
func (r *PostgresCommentRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// List はcreated_at順でページングしたコメント一覧を返す。
func (r *PostgresCommentRepo) List(ctx context.Context, opts model.ListOptions) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments
		 ORDER BY created_at `+orderDirection(opts.Ascending)+`
		 OFFSET $1 LIMIT $2`,
		opts.StartIndex, opts.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return collectComments(rows)
}

func collectComments(rows *sql.Rows) ([]*model.Comment, error) {
	defer rows.Close()

	comments := []*model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// Count は全コメント数を返す。
func (r *PostgresCommentRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return n, nil
}

// CountCreatedSince はsince以降に作成されたコメント数を返す。
func (r *PostgresCommentRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM comments WHERE created_at >= $1`, since,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recent comments: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
