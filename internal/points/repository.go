package points

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository reads raw activity documents keyed by account address.
// Absent accounts yield nil documents, not errors.
type ActivityRepository interface {
	Get(ctx context.Context, address string) ([]byte, error)
	GetMany(ctx context.Context, addresses []string) (map[string][]byte, error)
	All(ctx context.Context) (map[string][]byte, error)
	Upsert(ctx context.Context, address string, doc []byte) error
}

// PostgresActivityRepository stores activity documents as jsonb.
type PostgresActivityRepository struct {
	db *pgxpool.Pool
}

// NewPostgresActivityRepository builds a Postgres-backed activity repository.
func NewPostgresActivityRepository(db *pgxpool.Pool) *PostgresActivityRepository {
	return &PostgresActivityRepository{db: db}
}

// Get returns the document for address, or nil when none exists.
func (r *PostgresActivityRepository) Get(ctx context.Context, address string) ([]byte, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM activity WHERE address = $1`, address).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

// GetMany returns the documents for the given addresses that exist.
func (r *PostgresActivityRepository) GetMany(ctx context.Context, addresses []string) (map[string][]byte, error) {
	if len(addresses) == 0 {
		return map[string][]byte{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT address, document FROM activity WHERE address = ANY($1)`, addresses)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// All returns every activity document.
func (r *PostgresActivityRepository) All(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.Query(ctx, `SELECT address, document FROM activity`)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// Upsert replaces the document for address.
func (r *PostgresActivityRepository) Upsert(ctx context.Context, address string, doc []byte) error {
	_, err := r.db.Exec(ctx, `INSERT INTO activity (address, document, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (address) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`, address, doc)
	return err
}

func collectDocuments(rows pgx.Rows) (map[string][]byte, error) {
	defer rows.Close()
	out := make(map[string][]byte)
	for rows.Next() {
		var (
			address string
			doc     []byte
		)
		if err := rows.Scan(&address, &doc); err != nil {
			return nil, err
		}
		out[address] = doc
	}
	return out, rows.Err()
}
