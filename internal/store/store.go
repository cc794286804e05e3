// Package store persists users, questions and game sessions in Postgres.
package store

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/umoja/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = stderrors.New("store: not found")
	// ErrConflict is returned when an insert hits a unique key.
	ErrConflict = stderrors.New("store: conflict")

	ErrInsufficientCoins = stderrors.New("store: insufficient coins")
)

const codeUniqueViolation = "23505"

type Config struct {
	Addr     string
	User     string
	Pass     string
	Name     string
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (c Config) URL() string {
	u := fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name)
	if c.SSLMode != "" {
		u += "?sslmode=" + c.SSLMode
	}
	return u
}

// Connect opens a pool and pings it. tracer may be nil.
func Connect(ctx context.Context, c Config, tracer pgx.QueryTracer) (*pgxpool.Pool, error) {
	cc, err := pgxpool.ParseConfig(c.URL())
	if err != nil {
		return nil, err
	}
	if c.MaxConns > 0 {
		cc.MaxConns = c.MaxConns
	}
	cc.ConnConfig.Tracer = tracer

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Stats counts the rows of the main tables, used by the db-test probe.
func (s *Store) Stats(ctx context.Context) (domain.DBStats, error) {
	const stmt = `
SELECT
	(SELECT COUNT(*) FROM users),
	(SELECT COUNT(*) FROM questions),
	(SELECT COUNT(*) FROM game_sessions),
	(SELECT COUNT(*) FROM coin_transfers);`

	var st domain.DBStats
	err := s.db.QueryRow(ctx, stmt).Scan(&st.Users, &st.Questions, &st.GameSessions, &st.CoinTransfers)
	if err != nil {
		return domain.DBStats{}, fmt.Errorf("stats: %w", err)
	}

	return st, nil
}

// Migrate applies all pending migrations to the database at url (postgres://...).
func Migrate(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate ID: %w", err)
	}
	return id.String(), nil
}

func notFound(err error) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
