package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/bloghub/internal/model"
)

// accountColumns はパスワードハッシュを除いた既定の射影。
const accountColumns = `id, username, email, profile_picture, is_admin, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	a := &model.Account{}
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.ProfilePicture, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindByEmail はメールアドレスでアカウントをパスワードハッシュ付きで取得する。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	a := &model.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password, profile_picture, is_admin, created_at, updated_at
		 FROM accounts WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Username, &a.Email, &a.Password, &a.ProfilePicture, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return a, nil
}

// ExistsByUsername はusernameが使用済みかを返す。
func (r *PostgresAccountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, password, profile_picture, is_admin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.Username, account.Email, account.Password,
		account.ProfilePicture, account.IsAdmin, account.CreatedAt, account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Update はnil以外のフィールドのみを更新する。
func (r *PostgresAccountRepo) Update(ctx context.Context, id string, update model.AccountUpdate) (*model.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx,
		`UPDATE accounts SET
		     username = COALESCE($2, username),
		     email = COALESCE($3, email),
		     password = COALESCE($4, password),
		     profile_picture = COALESCE($5, profile_picture),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		id, update.Username, update.Email, update.Password, update.ProfilePicture,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// SetAdminByEmail は管理者フラグを更新する。
func (r *PostgresAccountRepo) SetAdminByEmail(ctx context.Context, email string, isAdmin bool) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_admin = $2, updated_at = now() WHERE email = $1`,
		email, isAdmin,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update admin flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByID は指定IDのアカウントを削除する。
func (r *PostgresAccountRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// List はcreated_at順でページングしたアカウント一覧を返す。
func (r *PostgresAccountRepo) List(ctx context.Context, opts model.ListOptions) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 ORDER BY created_at `+orderDirection(opts.Ascending)+`
		 OFFSET $1 LIMIT $2`,
		opts.StartIndex, opts.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*model.Account, 0, opts.Limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// Count は全アカウント数を返す。
func (r *PostgresAccountRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

// CountCreatedSince はsince以降に作成されたアカウント数を返す。
func (r *PostgresAccountRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM accounts WHERE created_at >= $1`, since,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recent accounts: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
