package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/coursehub/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db DBTX
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db DBTX) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const selectUserWithRoles = `
	SELECT u.id, u.email, u.password, u.first_name, u.last_name,
	       u.enabled, u.locked, u.provider, u.provider_id, u.created_at, u.updated_at,
	       COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

// FindByID は指定IDのユーザーをロール付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := r.scanUser(conn(ctx, r.db).QueryRowContext(ctx,
		selectUserWithRoles+` WHERE u.id = $1 GROUP BY u.id`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーをロール付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.scanUser(conn(ctx, r.db).QueryRowContext(ctx,
		selectUserWithRoles+` WHERE u.email = $1 GROUP BY u.id`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var providerID sql.NullString
	var roles pq.StringArray
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Enabled, &user.Locked, &user.Provider, &providerID, &user.CreatedAt, &user.UpdatedAt,
		&roles,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		user.ProviderID = &providerID.String
	}
	user.Roles = []string(roles)
	return user, nil
}

// ExistsByEmail はメールアドレスが登録済みかを返す。
func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO users (email, password, first_name, last_name, enabled, locked, provider, provider_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Enabled, user.Locked, user.Provider, user.ProviderID, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert user %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile は氏名を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, updated_at = $4 WHERE id = $1`,
		user.ID, user.FirstName, user.LastName, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// UpdateProvider は外部IdP情報と氏名を更新する。
func (r *PostgresUserRepo) UpdateProvider(ctx context.Context, user *model.User) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET provider = $2, provider_id = $3, first_name = $4, last_name = $5, updated_at = $6
		 WHERE id = $1`,
		user.ID, user.Provider, user.ProviderID, user.FirstName, user.LastName, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user provider: %w", err)
	}
	return nil
}

// AddRole はユーザーにロールを付与する。付与済みの場合は何もしない。
func (r *PostgresUserRepo) AddRole(ctx context.Context, userID, roleID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	return nil
}

// RemoveRoles はユーザーの全ロール紐付けを削除する。
func (r *PostgresUserRepo) RemoveRoles(ctx context.Context, userID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to remove roles: %w", err)
	}
	return nil
}

// Delete は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) Delete(ctx context.Context, id int64) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %d", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)

// PostgresRoleRepo はPostgreSQLを使用したロールリポジトリ。
type PostgresRoleRepo struct {
	db DBTX
}

// NewPostgresRoleRepo はPostgresRoleRepoを生成する。
func NewPostgresRoleRepo(db DBTX) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: db}
}

// FindByName はロール名でロールを取得する。見つからない場合はnilを返す。
func (r *PostgresRoleRepo) FindByName(ctx context.Context, name string) (*model.Role, error) {
	role := &model.Role{}
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name FROM roles WHERE name = $1`, name,
	).Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role by name: %w", err)
	}
	return role, nil
}

var _ RoleRepository = (*PostgresRoleRepo)(nil)
