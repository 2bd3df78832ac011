package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation        = "23505"
	referralCodeConstraint = "identities_referral_code_key"
	identityColumns        = `id, address, referral_code, COALESCE(referred_by, ''), auth_method, token_version, created_at, last_login`
)

// Repository persists identities. Uniqueness of the address and the attach-once
// referral link are enforced here, never by callers.
type Repository interface {
	// CreateIfAbsent inserts the identity unless its address is already bound, in
	// which case the stored identity is returned with created=false.
	CreateIfAbsent(ctx context.Context, identity Identity) (Identity, bool, error)
	FindByAddress(ctx context.Context, address string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	FindByReferralCode(ctx context.Context, code string) (Identity, error)
	// SetReferredBy sets the referrer only if none is set yet. It reports whether
	// the write happened.
	SetReferredBy(ctx context.Context, address, referrer string) (bool, error)
	ListReferees(ctx context.Context, referrer string) ([]string, error)
	List(ctx context.Context) ([]Identity, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateIfAbsent relies on ON CONFLICT so concurrent signups for one address
// resolve to a single row.
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, identity Identity) (Identity, bool, error) {
	id, err := uuid.Parse(identity.ID)
	if err != nil {
		return Identity{}, false, err
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO identities (id, address, referral_code, auth_method, token_version, created_at)
        VALUES ($1, $2, $3, $4, 0, $5)
        ON CONFLICT (address) DO NOTHING`,
		id, identity.Address, identity.ReferralCode, identity.AuthMethod, identity.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == referralCodeConstraint {
			return Identity{}, false, ErrReferralCodeTaken
		}
		return Identity{}, false, err
	}
	if cmd.RowsAffected() == 1 {
		return identity, true, nil
	}
	existing, err := r.FindByAddress(ctx, identity.Address)
	if err != nil {
		return Identity{}, false, err
	}
	return existing, false, nil
}

// FindByAddress fetches an identity by account address.
func (r *PostgresRepository) FindByAddress(ctx context.Context, address string) (Identity, error) {
	return r.findOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE address = $1`, address)
}

// FindByID fetches an identity by its identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, parsed)
}

// FindByReferralCode fetches the identity owning a referral code.
func (r *PostgresRepository) FindByReferralCode(ctx context.Context, code string) (Identity, error) {
	return r.findOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE referral_code = $1`, code)
}

// SetReferredBy performs the attach-once write as a conditional update.
func (r *PostgresRepository) SetReferredBy(ctx context.Context, address, referrer string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE identities SET referred_by = $2
        WHERE address = $1 AND referred_by IS NULL AND address <> $2`, address, referrer)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// ListReferees returns the addresses directly referred by referrer.
func (r *PostgresRepository) ListReferees(ctx context.Context, referrer string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT address FROM identities WHERE referred_by = $1 ORDER BY address`, referrer)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// List returns every identity.
func (r *PostgresRepository) List(ctx context.Context) ([]Identity, error) {
	rows, err := r.db.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	return out, rows.Err()
}

// TouchLogin records the last successful login.
func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateByID(ctx, `UPDATE identities SET last_login = $1 WHERE id = $2`, id, at.UTC())
}

// UpdateTokenVersion stores a new session token version.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	return r.updateByID(ctx, `UPDATE identities SET token_version = $1 WHERE id = $2`, id, version)
}

func (r *PostgresRepository) updateByID(ctx context.Context, query, id string, value any) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, value, parsed)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (Identity, error) {
	identity, err := scanIdentity(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	return identity, err
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		lastLogin *time.Time
		identity  Identity
	)
	if err := row.Scan(&id, &identity.Address, &identity.ReferralCode, &identity.ReferredBy,
		&identity.AuthMethod, &identity.TokenVersion, &createdAt, &lastLogin); err != nil {
		return Identity{}, err
	}
	identity.ID = id.String()
	identity.CreatedAt = createdAt.UTC()
	if lastLogin != nil {
		t := lastLogin.UTC()
		identity.LastLogin = &t
	}
	return identity, nil
}
