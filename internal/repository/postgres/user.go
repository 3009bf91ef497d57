package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

type userRow struct {
	model.User
	Permissions string `db:"permission_codes"`
}

const userColumns = `
	id, email, first_name, last_name, password_hash, is_staff, is_active,
	permission_codes, login_attempts, locked_until, last_login_at,
	created_at, updated_at
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	row, err := toUserRow(user)
	if err != nil {
		return err
	}
	query := `INSERT INTO users (` + userColumns + `) VALUES (
		:id, :email, :first_name, :last_name, :password_hash, :is_staff, :is_active,
		:permission_codes, :login_attempts, :locked_until, :last_login_at,
		:created_at, :updated_at
	)`
	if _, err := r.GetDB().NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) getBy(ctx context.Context, column string, value interface{}) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	var row userRow
	if err := r.GetDB().GetContext(ctx, &row, query, value); err != nil {
		return nil, notFoundOr(err, "user")
	}
	return fromUserRow(&row)
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	row, err := toUserRow(user)
	if err != nil {
		return err
	}
	query := `
		UPDATE users SET
			first_name = :first_name,
			last_name = :last_name,
			password_hash = :password_hash,
			is_staff = :is_staff,
			is_active = :is_active,
			permission_codes = :permission_codes,
			login_attempts = :login_attempts,
			locked_until = :locked_until,
			last_login_at = :last_login_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.GetDB().NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	var rows []userRow
	if err := r.GetDB().SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*model.User, 0, len(rows))
	for i := range rows {
		u, err := fromUserRow(&rows[i])
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func toUserRow(user *model.User) (*userRow, error) {
	codes := user.PermissionCodes
	if codes == nil {
		codes = []string{}
	}
	data, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permission codes: %w", err)
	}
	return &userRow{User: *user, Permissions: string(data)}, nil
}

func fromUserRow(row *userRow) (*model.User, error) {
	user := row.User
	if row.Permissions != "" {
		if err := json.Unmarshal([]byte(row.Permissions), &user.PermissionCodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permission codes of user %s: %w", user.ID, err)
		}
	}
	return &user, nil
}
