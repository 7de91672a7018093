package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/bloghub/internal/model"
)

const postColumns = `id, user_id, title, content, image, category, slug, created_at, updated_at`

func scanPost(row rowScanner) (*model.Post, error) {
	p := &model.Post{}
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.Image, &p.Category, &p.Slug, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return post, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, content, image, category, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		post.ID, post.UserID, post.Title, post.Content, post.Image,
		post.Category, post.Slug, post.CreatedAt, post.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は空文字以外のフィールドを更新する。
func (r *PostgresPostRepo) Update(ctx context.Context, id string, update model.PostUpdate) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx,
		`UPDATE posts SET
		     title = COALESCE(NULLIF($2, ''), title),
		     content = COALESCE(NULLIF($3, ''), content),
		     category = COALESCE(NULLIF($4, ''), category),
		     image = COALESCE(NULLIF($5, ''), image),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+postColumns,
		id, update.Title, update.Content, update.Category, update.Image,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return post, nil
}

// DeleteByID は指定IDの投稿を削除する。
func (r *PostgresPostRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// List は条件に一致する投稿をupdated_at順でページングして返す。
func (r *PostgresPostRepo) List(ctx context.Context, filter model.PostFilter, opts model.ListOptions) ([]*model.Post, error) {
	where, args := buildPostFilter(filter)
	args = append(args, opts.StartIndex, opts.Limit)

	query := `SELECT ` + postColumns + ` FROM posts` + where +
		` ORDER BY updated_at ` + orderDirection(opts.Ascending) +
		` OFFSET $` + strconv.Itoa(len(args)-1) + ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*model.Post, 0, opts.Limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// buildPostFilter は空でない条件のみを連結したWHERE句とプレースホルダ引数を返す。
// SearchTermはタイトルと本文の大文字小文字を区別しない部分一致。
func buildPostFilter(filter model.PostFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(expr, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.UserID != "" {
		add("user_id = ?", filter.UserID)
	}
	if filter.Category != "" {
		add("category = ?", filter.Category)
	}
	if filter.Slug != "" {
		add("slug = ?", filter.Slug)
	}
	if filter.PostID != "" {
		add("id = ?", filter.PostID)
	}
	if filter.SearchTerm != "" {
		add("(title ILIKE ? OR content ILIKE ?)", "%"+escapeLike(filter.SearchTerm)+"%")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Count は全投稿数を返す。
func (r *PostgresPostRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

// CountCreatedSince はsince以降に作成された投稿数を返す。
func (r *PostgresPostRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM posts WHERE created_at >= $1`, since,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recent posts: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
