package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
)

const userColumns = `id, email, first_name, last_name, password_hash, role, created_at, updated_at, version`

type CreateUserParams struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         models.Role
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	return user, err
}

func CreateUser(ctx context.Context, db DBTX, params CreateUserParams) (*models.User, error) {
	if params.Role == "" {
		params.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (email, first_name, last_name, password_hash, role, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	user, err := scanUser(db.QueryRowContext(ctx, query,
		strings.ToLower(strings.TrimSpace(params.Email)),
		params.FirstName,
		params.LastName,
		params.PasswordHash,
		params.Role,
	))
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db DBTX, id int64) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db DBTX, email string) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

// lockUser serializes writes that belong to one user, such as cart edits.
func lockUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if database.IsNoRows(err) {
			return database.ErrUserNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func ListUsers(ctx context.Context, db DBTX, page, pageSize int) (*OffsetPage[models.User], error) {
	page, pageSize = NormalizePage(page, pageSize)

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		pageSize, offset(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page, pageSize), nil
}
