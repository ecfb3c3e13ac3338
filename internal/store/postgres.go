package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/chat"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const uniqueViolation = "23505"

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("Database connected",
			zap.String("sslmode", extractSSLMode(databaseURL)),
			zap.Int32("max_conns", poolCfg.MaxConns),
		)
	}
	return pool, nil
}

func extractSSLMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "unknown"
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "" {
		return "prefer (default)"
	}
	return mode
}

type gooseLogger struct{ *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSpace(format), v...)
}

// RunMigrations applies every pending migration embedded in the binary.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{logger.Named("migrations").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Postgres is the PostgreSQL-backed store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Users returns the user repository.
func (p *Postgres) Users() *UserRepo { return &UserRepo{pool: p.pool} }

// Messages returns the message repository.
func (p *Postgres) Messages() *MessageRepo { return &MessageRepo{pool: p.pool} }

// Ping checks database reachability for readiness probes.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// userColumns must match the Scan order in scanUser.
const userColumns = `id::text, username, password_hash, created_at, updated_at`

// UserRepo implements chat.UserRepository backed by PostgreSQL.
type UserRepo struct {
	pool *pgxpool.Pool
}

var _ chat.UserRepository = (*UserRepo)(nil)

func scanUser(row pgx.Row) (chat.User, error) {
	var u chat.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepo) Create(ctx context.Context, user chat.User) (chat.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt)

	created, err := scanUser(row)
	if isUniqueViolation(err) {
		return chat.User{}, chat.ErrUsernameTaken
	}
	if err != nil {
		return chat.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (chat.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.User{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.User{}, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (chat.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.User{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.User{}, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

func (r *UserRepo) List(ctx context.Context) ([]chat.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) Update(ctx context.Context, id string, update chat.UserUpdate) (chat.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET username = COALESCE($2, username),
		    password_hash = COALESCE($3, password_hash),
		    updated_at = $4
		WHERE id = $1::uuid
		RETURNING `+userColumns,
		id, update.Username, update.PasswordHash, update.UpdatedAt)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.User{}, chat.ErrNotFound
	}
	if isUniqueViolation(err) {
		return chat.User{}, chat.ErrUsernameTaken
	}
	if err != nil {
		return chat.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) (chat.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `DELETE FROM users WHERE id = $1::uuid RETURNING `+userColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.User{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.User{}, fmt.Errorf("failed to delete user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) TouchActivity(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET updated_at = $2 WHERE id = $1::uuid`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch user activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// messageColumns must match the Scan order in scanMessage.
const messageColumns = `id::text, username, message, created_at, updated_at`

// MessageRepo implements chat.MessageRepository backed by PostgreSQL.
type MessageRepo struct {
	pool *pgxpool.Pool
}

var _ chat.MessageRepository = (*MessageRepo)(nil)

func scanMessage(row pgx.Row) (chat.Message, error) {
	var m chat.Message
	err := row.Scan(&m.ID, &m.Username, &m.Message, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *MessageRepo) Create(ctx context.Context, msg chat.Message) (chat.Message, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, username, message, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING `+messageColumns,
		msg.ID, msg.Username, msg.Message, msg.CreatedAt, msg.UpdatedAt)

	created, err := scanMessage(row)
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to create message: %w", err)
	}
	return created, nil
}

func (r *MessageRepo) FindByID(ctx context.Context, id string) (chat.Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Message{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to get message by ID: %w", err)
	}
	return msg, nil
}

func (r *MessageRepo) List(ctx context.Context) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+messageColumns+` FROM chat_messages ORDER BY created_at, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepo) Update(ctx context.Context, id, text string, at time.Time) (chat.Message, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE chat_messages SET message = $2, updated_at = $3
		WHERE id = $1::uuid
		RETURNING `+messageColumns,
		id, text, at)

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Message{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to update message: %w", err)
	}
	return msg, nil
}

func (r *MessageRepo) Delete(ctx context.Context, id string) (chat.Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `DELETE FROM chat_messages WHERE id = $1::uuid RETURNING `+messageColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Message{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to delete message: %w", err)
	}
	return msg, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
