package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/repository"
)

// poolIface is the subset of pgxpool.Pool the repository uses, so tests can
// substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, name, first_surname, second_surname, identifier, tax_id, avatar_key,
	email, password_hash, second_factor_secret, second_factor_enabled, role, active,
	reset_code, reset_code_expires_at, birth_date, license_number, phone, address,
	prescription_permissions, terms_acceptance, created_at, updated_at`

type UserRepository struct {
	pool poolIface
}

func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, first_surname, second_surname, identifier, tax_id, avatar_key,
			email, password_hash, second_factor_secret, second_factor_enabled, role, active,
			reset_code, reset_code_expires_at, birth_date, license_number, phone, address,
			prescription_permissions, terms_acceptance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id
	`, u.Name, u.FirstSurname, u.SecondSurname, u.Identifier, u.TaxID, u.AvatarKey,
		u.Email, u.PasswordHash, u.SecondFactorSecret, u.SecondFactorEnabled, string(u.Role), u.Active,
		u.ResetCode, u.ResetCodeExpiresAt, u.BirthDate, u.LicenseNumber, u.Phone, u.Address,
		jsonArg(u.PrescriptionPermissions), jsonArg(u.TermsAcceptance), u.CreatedAt, u.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return nil, mapWriteErr("users.create", err)
	}
	out := *u
	out.ID = id
	return &out, nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) (*entity.User, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $1, first_surname = $2, second_surname = $3, identifier = $4, tax_id = $5,
			avatar_key = $6, email = $7, password_hash = $8, second_factor_secret = $9,
			second_factor_enabled = $10, role = $11, active = $12, reset_code = $13,
			reset_code_expires_at = $14, birth_date = $15, license_number = $16, phone = $17,
			address = $18, prescription_permissions = $19, terms_acceptance = $20, updated_at = $21
		WHERE id = $22
	`, u.Name, u.FirstSurname, u.SecondSurname, u.Identifier, u.TaxID,
		u.AvatarKey, u.Email, u.PasswordHash, u.SecondFactorSecret,
		u.SecondFactorEnabled, string(u.Role), u.Active, u.ResetCode,
		u.ResetCodeExpiresAt, u.BirthDate, u.LicenseNumber, u.Phone,
		u.Address, jsonArg(u.PrescriptionPermissions), jsonArg(u.TermsAcceptance), u.UpdatedAt,
		u.ID)
	if err != nil {
		return nil, mapWriteErr("users.update", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errs.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) Delete(ctx context.Context, identifier string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET active = FALSE, updated_at = $2
		WHERE identifier = $1 AND active
		RETURNING `+userColumns, identifier, time.Now().UTC())
	return scanOne("users.delete", row)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanOne("users.find_by_id", row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanOne("users.find_by_email", row)
}

func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE identifier = $1 AND active`, identifier)
	return scanOne("users.find_by_identifier", row)
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE active ORDER BY created_at DESC`)
	if err != nil {
		return nil, errs.Unavailable("users.find_all", err)
	}
	defer rows.Close()

	var out []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Unavailable("users.find_all", err)
	}
	return out, nil
}

func scanOne(op string, row pgx.Row) (*entity.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if errors.Is(err, errs.ErrValidation) {
			return nil, err
		}
		return nil, errs.Unavailable(op, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		p      entity.UserParams
		role   string
		active bool
	)
	if err := row.Scan(&p.ID, &p.Name, &p.FirstSurname, &p.SecondSurname, &p.Identifier, &p.TaxID,
		&p.AvatarKey, &p.Email, &p.PasswordHash, &p.SecondFactorSecret, &p.SecondFactorEnabled,
		&role, &active, &p.ResetCode, &p.ResetCodeExpiresAt, &p.BirthDate, &p.LicenseNumber,
		&p.Phone, &p.Address, &p.PrescriptionPermissions, &p.TermsAcceptance,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = entity.Role(role)
	p.Active = &active
	return entity.RestoreUser(p)
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return &errs.DuplicateError{Field: "email"}
		}
		return &errs.DuplicateError{Field: "identifier"}
	}
	return errs.Unavailable(op, err)
}

// jsonArg sends NULL instead of an empty document.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

var _ repository.UserRepository = (*UserRepository)(nil)
