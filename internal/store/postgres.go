package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"school-secretary/internal/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS digest_users (
	id               UUID PRIMARY KEY,
	email            TEXT NOT NULL UNIQUE,
	refresh_token    TEXT NOT NULL,
	access_token     TEXT NOT NULL DEFAULT '',
	token_expires_at TIMESTAMPTZ,
	timezone         TEXT NOT NULL,
	enabled          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const userColumns = `id::text, email, refresh_token, access_token, token_expires_at, timezone, enabled, created_at, updated_at`

// PostgresStore implements UserRepository on a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// OpenPostgres connects and ensures the users table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	s := &PostgresStore{db: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) ListEnabled(ctx context.Context) ([]domain.DigestUser, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM digest_users WHERE enabled ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("store: list enabled: %w", err)
	}
	defer rows.Close()

	var out []domain.DigestUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list enabled: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list enabled: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.DigestUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.DigestUser{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM digest_users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DigestUser{}, ErrNotFound
	}
	if err != nil {
		return domain.DigestUser{}, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

const upsertSQL = `INSERT INTO digest_users (id, email, refresh_token, timezone, enabled)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (email) DO UPDATE SET
	refresh_token    = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), digest_users.refresh_token),
	access_token     = CASE WHEN EXCLUDED.refresh_token <> '' AND EXCLUDED.refresh_token <> digest_users.refresh_token
	                        THEN '' ELSE digest_users.access_token END,
	token_expires_at = CASE WHEN EXCLUDED.refresh_token <> '' AND EXCLUDED.refresh_token <> digest_users.refresh_token
	                        THEN NULL ELSE digest_users.token_expires_at END,
	timezone         = COALESCE(NULLIF(EXCLUDED.timezone, ''), digest_users.timezone),
	enabled          = EXCLUDED.enabled,
	updated_at       = NOW()
RETURNING ` + userColumns

func (s *PostgresStore) UpsertByEmail(ctx context.Context, u domain.DigestUser) (domain.DigestUser, error) {
	email := NormalizeEmail(u.Email)
	if email == "" {
		return domain.DigestUser{}, &domain.ValidationError{Field: "email", Msg: "required"}
	}
	row := s.db.QueryRow(ctx, upsertSQL, uuid.NewString(), email, string(u.RefreshToken), u.TimeZone, u.Enabled)
	out, err := scanUser(row)
	if err != nil {
		return domain.DigestUser{}, fmt.Errorf("store: upsert %s: %w", email, err)
	}
	return out, nil
}

const updateCredentialSQL = `UPDATE digest_users SET access_token = $2, token_expires_at = $3, updated_at = NOW() WHERE id = $1`

func (s *PostgresStore) UpdateCredential(ctx context.Context, id string, cred domain.Credential) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	var expires *time.Time
	if !cred.ExpiresAt.IsZero() {
		t := cred.ExpiresAt
		expires = &t
	}
	tag, err := s.db.Exec(ctx, updateCredentialSQL, id, cred.AccessToken, expires)
	if err != nil {
		return fmt.Errorf("store: update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const setEnabledSQL = `UPDATE digest_users SET enabled = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns

func (s *PostgresStore) SetEnabled(ctx context.Context, id string, enabled bool) (domain.DigestUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.DigestUser{}, ErrNotFound
	}
	u, err := scanUser(s.db.QueryRow(ctx, setEnabledSQL, id, enabled))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DigestUser{}, ErrNotFound
	}
	if err != nil {
		return domain.DigestUser{}, fmt.Errorf("store: set enabled: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (domain.DigestUser, error) {
	var (
		u       domain.DigestUser
		refresh string
		expires *time.Time
	)
	err := row.Scan(&u.ID, &u.Email, &refresh, &u.Credential.AccessToken, &expires, &u.TimeZone, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.DigestUser{}, err
	}
	u.RefreshToken = domain.RefreshToken(refresh)
	if expires != nil {
		u.Credential.ExpiresAt = *expires
	}
	return u, nil
}
