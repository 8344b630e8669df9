package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/repository"
)

const usersTable = "shop.users"

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"first_name",
	"last_name",
	"phone",
	"date_of_birth",
	"avatar_url",
	"role",
	"is_verified",
	"provider_id",
	"refresh_token_hash",
	"created_at",
	"updated_at",
	"last_login",
}

// pgExecutor abstracts pgxpool.Pool and pgx.Tx for query execution.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	query := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Email,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.Phone,
			user.DateOfBirth,
			user.AvatarURL,
			string(user.Role),
			user.IsVerified,
			user.ProviderID,
			user.RefreshTokenHash,
			user.CreatedAt,
			user.UpdatedAt,
			user.LastLogin,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by unique email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

// GetByProviderID retrieves a user by its external-provider identity.
func (r *UserRepository) GetByProviderID(ctx context.Context, providerID string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"provider_id": providerID})
}

func (r *UserRepository) getOne(ctx context.Context, pred squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// ExistsByEmail reports whether an identity with the email exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From(usersTable).
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query exists: %w", err)
	}

	return true, nil
}

// UpdateRefreshTokenHash overwrites the stored refresh-token hash. A
// nil hash clears it (logout).
func (r *UserRepository) UpdateRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	return r.updateFields(ctx, id, map[string]any{"refresh_token_hash": hash})
}

// UpdateProviderID links an account to an external identity provider.
func (r *UserRepository) UpdateProviderID(ctx context.Context, id string, providerID string) error {
	return r.updateFields(ctx, id, map[string]any{"provider_id": providerID})
}

// UpdateRole rewrites the role column.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.updateFields(ctx, id, map[string]any{"role": string(role)})
}

// UpdateLastLogin records the most recent successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateFields(ctx, id, map[string]any{"last_login": at})
}

func (r *UserRepository) updateFields(ctx context.Context, id string, fields map[string]any) error {
	update := r.builder.Update(usersTable).Where(squirrel.Eq{"id": id})
	for column, value := range fields {
		update = update.Set(column, value)
	}
	update = update.Set("updated_at", time.Now().UTC())

	stmt, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns users matching the filter ordered by creation time.
func (r *UserRepository) List(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	query := r.builder.
		Select(userColumns...).
		From(usersTable).
		OrderBy("created_at DESC")

	query = applyUserFilter(query, filter)

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// Count returns the number of users matching the filter.
func (r *UserRepository) Count(ctx context.Context, filter port.UserFilter) (int, error) {
	query := r.builder.Select("COUNT(*)").From(usersTable)
	query = applyUserFilter(query, filter)

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count users sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

func applyUserFilter(query squirrel.SelectBuilder, filter port.UserFilter) squirrel.SelectBuilder {
	if filter.Role != nil {
		query = query.Where(squirrel.Eq{"role": string(*filter.Role)})
	}
	if filter.Verified != nil {
		query = query.Where(squirrel.Eq{"is_verified": *filter.Verified})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"first_name": pattern},
			squirrel.ILike{"last_name": pattern},
		})
	}
	return query
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user        domain.User
		role        string
		phone       sql.NullString
		dateOfBirth sql.NullTime
		avatarURL   sql.NullString
		providerID  sql.NullString
		refreshHash sql.NullString
		lastLogin   sql.NullTime
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&phone,
		&dateOfBirth,
		&avatarURL,
		&role,
		&user.IsVerified,
		&providerID,
		&refreshHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLogin,
	); err != nil {
		return nil, err
	}

	user.Role = domain.Role(role)
	if phone.Valid {
		user.Phone = &phone.String
	}
	if dateOfBirth.Valid {
		dob := dateOfBirth.Time
		user.DateOfBirth = &dob
	}
	if avatarURL.Valid {
		user.AvatarURL = &avatarURL.String
	}
	if providerID.Valid {
		user.ProviderID = &providerID.String
	}
	if refreshHash.Valid {
		user.RefreshTokenHash = &refreshHash.String
	}
	if lastLogin.Valid {
		at := lastLogin.Time
		user.LastLogin = &at
	}

	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
