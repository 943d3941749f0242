package stores

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNameConflict is returned when a unique name is already registered to
// a different owner.
var ErrNameConflict = errors.New("name registered to a different owner")

// Registration is a single WINS name registration row.
type Registration struct {
	ID       uuid.UUID `json:"id"`
	Value    string    `json:"value"`
	Scope    string    `json:"scope"`
	Purpose  byte      `json:"purpose"`
	Group    bool      `json:"group"`
	NodeType uint8     `json:"nodeType"`
	Address  [4]byte   `json:"address"`
	Expires  time.Time `json:"expires"`
}

// Database represents a PostgreSQL-backed registration store.
type Database struct {
	pool *pgxpool.Pool
}

// Close closes the underlying database connection.
func (db *Database) Close() {
	db.pool.Close()
}

// NewStore returns an initialized Database instance.
func NewStore(ctx context.Context, dc DatabaseConfig) (*Database, error) {
	pool, err := pgxpool.New(ctx, dc.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	} else if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &Database{pool}
	if err := db.init(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("Connected to SQL database %s, %s:%d\n", dc.Database, dc.Host, dc.Port)
	return db, nil
}

func (db *Database) init(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS registrations (
			id        UUID PRIMARY KEY,
			value     TEXT NOT NULL,
			scope     TEXT NOT NULL,
			purpose   SMALLINT NOT NULL,
			is_group  BOOLEAN NOT NULL,
			node_type SMALLINT NOT NULL,
			address   BYTEA NOT NULL,
			expires   TIMESTAMPTZ NOT NULL,
			UNIQUE (value, scope, purpose, address)
		)
	`)
	return err
}

// AddRegistration inserts or refreshes a registration. A unique (non-group)
// name held by a different address is a conflict; group names accumulate
// owners instead.
func (db *Database) AddRegistration(ctx context.Context, reg Registration) error {
	if !reg.Group {
		var addr []byte
		err := db.pool.QueryRow(ctx, `
			SELECT address FROM registrations
			WHERE value = $1 AND scope = $2 AND purpose = $3 AND is_group = FALSE AND expires > now()
		`, reg.Value, reg.Scope, reg.Purpose).Scan(&addr)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if err == nil && !bytes.Equal(addr, reg.Address[:]) {
			return ErrNameConflict
		}
	}

	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO registrations (id, value, scope, purpose, is_group, node_type, address, expires)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (value, scope, purpose, address)
		DO UPDATE SET node_type = EXCLUDED.node_type, is_group = EXCLUDED.is_group, expires = EXCLUDED.expires
	`, reg.ID, reg.Value, reg.Scope, reg.Purpose, reg.Group, reg.NodeType, reg.Address[:], reg.Expires)
	return err
}

// FindRegistrations returns the active registrations of a name.
func (db *Database) FindRegistrations(ctx context.Context, value, scope string, purpose byte) ([]Registration, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, value, scope, purpose, is_group, node_type, address, expires
		FROM registrations
		WHERE value = $1 AND scope = $2 AND purpose = $3 AND expires > now()
	`, value, scope, purpose)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

// Registrations returns all active registrations.
func (db *Database) Registrations(ctx context.Context) ([]Registration, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, value, scope, purpose, is_group, node_type, address, expires
		FROM registrations
		WHERE expires > now()
		ORDER BY value, scope, purpose
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

func scanRegistrations(rows pgx.Rows) ([]Registration, error) {
	var regs []Registration
	for rows.Next() {
		var reg Registration
		var addr []byte
		if err := rows.Scan(&reg.ID, &reg.Value, &reg.Scope, &reg.Purpose, &reg.Group, &reg.NodeType, &addr, &reg.Expires); err != nil {
			return nil, err
		}
		copy(reg.Address[:], addr)
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// ReleaseRegistration removes the registration held by the given address.
func (db *Database) ReleaseRegistration(ctx context.Context, value, scope string, purpose byte, address [4]byte) (bool, error) {
	tag, err := db.pool.Exec(ctx, `
		DELETE FROM registrations
		WHERE value = $1 AND scope = $2 AND purpose = $3 AND address = $4
	`, value, scope, purpose, address[:])
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// PruneExpired deletes the registrations whose TTL has run out.
func (db *Database) PruneExpired(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM registrations WHERE expires <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
