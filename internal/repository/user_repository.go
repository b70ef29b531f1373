package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
)

const userColumns = "id, email, name, password_hash, language, email_verified, personal_code, created_at, updated_at, deleted_at"

type UserRepository struct {
	q database.Queryer
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *UserRepository) WithTx(tx *database.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

type CreateUserParams struct {
	Email        *string
	Name         string
	Password     string
	Language     string
	PersonalCode *string
}

// CreateUser inserts a new account. An empty password leaves the hash NULL,
// which is how invite-time placeholder accounts are made.
func (r *UserRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	now := time.Now().UTC()
	user := models.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(params.Name),
		Language:  params.Language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Language == "" {
		user.Language = "en"
	}
	if params.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*params.Email))
		user.Email = &email
	}
	user.PersonalCode = params.PersonalCode
	if params.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, errors.Wrap(err, "hash password")
		}
		h := string(hash)
		user.PasswordHash = &h
	}

	const query = `
		INSERT INTO users (id, email, name, password_hash, language, email_verified, personal_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Language,
		user.EmailVerified, user.PersonalCode, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, errors.Wrap(err, "insert user")
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`
	return r.scanUser(r.q.QueryRowContext(ctx, query, id))
}

// GetByEmail matches case-insensitively; stored emails are lowercase but
// callers pass user input.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = ? AND deleted_at IS NULL`
	return r.scanUser(r.q.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// GetManyByEmails batch-looks-up live accounts for the given addresses and
// returns them keyed by lowercase email.
func (r *UserRepository) GetManyByEmails(ctx context.Context, emails []string) (map[string]models.User, error) {
	found := make(map[string]models.User, len(emails))
	if len(emails) == 0 {
		return found, nil
	}

	placeholders := make([]string, 0, len(emails))
	args := make([]interface{}, 0, len(emails))
	for _, email := range emails {
		placeholders = append(placeholders, "?")
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL AND email IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query users by email")
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		if user.Email != nil {
			found[*user.Email] = user
		}
	}
	return found, rows.Err()
}

func (r *UserRepository) GetByPersonalCode(ctx context.Context, code string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE personal_code = ? AND deleted_at IS NULL`
	return r.scanUser(r.q.QueryRowContext(ctx, query, code))
}

// Authenticate verifies the password for the account behind email. Placeholder
// accounts without a password never authenticate.
func (r *UserRepository) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if !user.HasPassword() {
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, name, language string) (models.User, error) {
	const query = `
		UPDATE users
		SET name = ?, language = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	result, err := r.q.ExecContext(ctx, query, strings.TrimSpace(name), language, time.Now().UTC(), id)
	if err != nil {
		return models.User{}, errors.Wrap(err, "update user")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return models.User{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// MarkEmailVerified records that the account opened mail sent to its address.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET email_verified = TRUE, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	result, err := r.q.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "mark email verified")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Language,
		&user.EmailVerified, &user.PersonalCode, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, errors.Wrap(err, "scan user")
	}
	return user, nil
}

func scanUserRow(rows *sql.Rows) (models.User, error) {
	var user models.User
	err := rows.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Language,
		&user.EmailVerified, &user.PersonalCode, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if err != nil {
		return models.User{}, errors.Wrap(err, "scan user")
	}
	return user, nil
}

// isUniqueViolation matches the duplicate-key errors of both dialects.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
