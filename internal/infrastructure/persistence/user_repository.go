package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
)

// UserRepository handles database operations for user accounts
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, name, email, password_hash, is_staff, created_date"

// Insert creates a new user account
func (r *UserRepository) Insert(ctx context.Context, tx *sql.Tx, user *models.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, NOW())`,
		constants.TableUser, userColumns)

	_, err := pick(r.db, tx).ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.IsStaff)
	return err
}

// FindByID retrieves a user by id; nil, nil when absent
func (r *UserRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", userColumns, constants.TableUser)
	return r.findOne(ctx, tx, query, id)
}

// FindByEmail retrieves a user by email; nil, nil when absent
func (r *UserRepository) FindByEmail(ctx context.Context, tx *sql.Tx, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE email = ? LIMIT 1", userColumns, constants.TableUser)
	return r.findOne(ctx, tx, query, email)
}

func (r *UserRepository) findOne(ctx context.Context, tx *sql.Tx, query string, arg any) (*models.User, error) {
	var user models.User
	var createdRaw any
	err := pick(r.db, tx).QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.IsStaff, &createdRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.CreatedDate = parseTime(createdRaw)
	return &user, nil
}
