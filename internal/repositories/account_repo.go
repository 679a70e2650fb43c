package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ridelink/identity/internal/database"
	"github.com/ridelink/identity/internal/models"
)

// AccountRepository is the postgres-backed account store.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

const accountColumns = `id, identifier, role, credential_hash, display_name, admin_provisioned, created_at, updated_at`

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	err := scanner.Scan(
		&account.ID, &account.Identifier, &account.Role, &account.CredentialHash,
		&account.DisplayName, &account.AdminProvisioned,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &account, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return accounts, nil
}

// FindByIdentifier returns every account for an identifier, ordered by
// role for a stable result.
func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE identifier = $1 ORDER BY role`,
		identifier,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanAccountRows(rows)
}

func (r *AccountRepository) FindByIdentifierAndRole(ctx context.Context, identifier string, role models.Role) (*models.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE identifier = $1 AND role = $2`,
		identifier, role,
	)
	return scanAccountRow(row)
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	now := time.Now()
	account.ID = uuid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	row := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, identifier, role, credential_hash, display_name, admin_provisioned, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+accountColumns,
		account.ID, account.Identifier, account.Role, account.CredentialHash,
		account.DisplayName, account.AdminProvisioned, account.CreatedAt, account.UpdatedAt,
	)
	return scanAccountRow(row)
}

func (r *AccountRepository) Update(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE accounts
		 SET credential_hash = COALESCE(NULLIF($2, ''), credential_hash),
		     display_name = COALESCE(NULLIF($3, ''), display_name),
		     admin_provisioned = $4,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		id, account.CredentialHash, account.DisplayName, account.AdminProvisioned,
	)
	return scanAccountRow(row)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
