package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/model"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects a pool with the given DSN and size limit.
func NewPostgres(ctx context.Context, dsn string, maxConns int, logger *zap.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// mapError translates driver errors into the storage sentinels. The
// exclusion constraint on active bookings raises 23P01 when two inserts
// race past the in-transaction check.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01", "23505": // exclusion_violation, unique_violation
			return ErrOverlap
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}

	return err
}

const bookingColumns = `id, environment_id, user_id, start_date, end_date,
	purpose, status, created_at, cancelled_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.EnvironmentID, &b.UserID, &b.StartDate,
		&b.EndDate, &b.Purpose, &b.Status, &b.CreatedAt, &b.CancelledAt)
	if err != nil {
		return nil, mapError(err)
	}

	return &b, nil
}

// CreateBooking inserts a booking inside a transaction that serializes
// writers per environment. Locking the environment row first means two
// concurrent requests for the same environment re-check the overlap one
// after the other, so only the first insert survives.
func (p *Postgres) CreateBooking(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var envID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM environments WHERE id = $1 FOR UPDATE`,
		b.EnvironmentID).Scan(&envID)
	if err != nil {
		return nil, mapError(err)
	}

	var conflict bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE environment_id = $1
			  AND status = 'Active'
			  AND daterange(start_date, end_date, '[]') && daterange($2::date, $3::date, '[]')
		)`,
		b.EnvironmentID, b.StartDate, b.EndDate).Scan(&conflict)
	if err != nil {
		return nil, mapError(err)
	}
	if conflict {
		return nil, ErrOverlap
	}

	created := *b
	created.Status = model.BookingActive
	err = tx.QueryRow(ctx,
		`INSERT INTO bookings (environment_id, user_id, start_date, end_date, purpose, status)
		 VALUES ($1, $2, $3, $4, $5, 'Active')
		 RETURNING id, created_at`,
		b.EnvironmentID, b.UserID, b.StartDate, b.EndDate, b.Purpose).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	err = audit(ctx, tx, model.AuditEntry{
		EnvironmentID: created.EnvironmentID,
		BookingID:     &created.ID,
		ActorID:       created.UserID,
		Action:        model.AuditBookingCreated,
		Detail: fmt.Sprintf("%s to %s",
			created.StartDate.Format("2006-01-02"),
			created.EndDate.Format("2006-01-02")),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err)
	}

	p.logger.Info("Booking created",
		zap.Int64("booking_id", created.ID),
		zap.Int64("environment_id", created.EnvironmentID),
		zap.Int64("user_id", created.UserID),
	)

	return &created, nil
}

// CancelBooking marks a booking cancelled. The row is kept; only the
// status and timestamp change. Cancelling an already-cancelled booking
// returns ErrNotFound since no active row matches.
func (p *Postgres) CancelBooking(ctx context.Context, id, actorID int64) (*model.Booking, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cancelled, err := scanBooking(tx.QueryRow(ctx,
		`UPDATE bookings
		 SET status = 'Cancelled', cancelled_at = now()
		 WHERE id = $1 AND status = 'Active'
		 RETURNING `+bookingColumns,
		id))
	if err != nil {
		return nil, err
	}

	err = audit(ctx, tx, model.AuditEntry{
		EnvironmentID: cancelled.EnvironmentID,
		BookingID:     &cancelled.ID,
		ActorID:       actorID,
		Action:        model.AuditBookingCancelled,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err)
	}

	p.logger.Info("Booking cancelled",
		zap.Int64("booking_id", cancelled.ID),
		zap.Int64("actor_id", actorID),
	)

	return cancelled, nil
}

// GetBooking retrieves a single booking by ID.
func (p *Postgres) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return scanBooking(p.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

// ListBookings returns all bookings joined with display names.
func (p *Postgres) ListBookings(ctx context.Context) ([]model.BookingView, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT b.id, b.environment_id, b.user_id, b.start_date, b.end_date,
		        b.purpose, b.status, b.created_at, b.cancelled_at,
		        e.name, u.username
		 FROM bookings b
		 JOIN environments e ON e.id = b.environment_id
		 JOIN users u ON u.id = b.user_id
		 ORDER BY b.created_at DESC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	views := []model.BookingView{}
	for rows.Next() {
		var v model.BookingView
		err := rows.Scan(&v.ID, &v.EnvironmentID, &v.UserID, &v.StartDate,
			&v.EndDate, &v.Purpose, &v.Status, &v.CreatedAt, &v.CancelledAt,
			&v.EnvironmentName, &v.Username)
		if err != nil {
			return nil, mapError(err)
		}
		views = append(views, v)
	}

	return views, mapError(rows.Err())
}

func (p *Postgres) listBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := []model.Booking{}
	for rows.Next() {
		var b model.Booking
		err := rows.Scan(&b.ID, &b.EnvironmentID, &b.UserID, &b.StartDate,
			&b.EndDate, &b.Purpose, &b.Status, &b.CreatedAt, &b.CancelledAt)
		if err != nil {
			return nil, mapError(err)
		}
		bookings = append(bookings, b)
	}

	return bookings, mapError(rows.Err())
}

// ListActiveBookings returns every active booking ordered by start date.
func (p *Postgres) ListActiveBookings(ctx context.Context) ([]model.Booking, error) {
	return p.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status = 'Active' ORDER BY start_date`)
}

// ListActiveByEnvironment returns one environment's active bookings.
func (p *Postgres) ListActiveByEnvironment(ctx context.Context, environmentID int64) ([]model.Booking, error) {
	return p.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE environment_id = $1 AND status = 'Active' ORDER BY start_date`,
		environmentID)
}

func scanEnvironment(row pgx.Row) (*model.Environment, error) {
	var e model.Environment
	err := row.Scan(&e.ID, &e.Name, &e.Type, &e.ManualStatus, &e.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return &e, nil
}

// GetEnvironment retrieves a single environment by ID.
func (p *Postgres) GetEnvironment(ctx context.Context, id int64) (*model.Environment, error) {
	return scanEnvironment(p.pool.QueryRow(ctx,
		`SELECT id, name, type, manual_status, created_at
		 FROM environments WHERE id = $1`, id))
}

// ListEnvironments returns all environments ordered by name.
func (p *Postgres) ListEnvironments(ctx context.Context) ([]model.Environment, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, type, manual_status, created_at
		 FROM environments ORDER BY name`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	envs := []model.Environment{}
	for rows.Next() {
		var e model.Environment
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.ManualStatus, &e.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		envs = append(envs, e)
	}

	return envs, mapError(rows.Err())
}

// UpdateEnvironment edits the descriptive fields and audits the change.
func (p *Postgres) UpdateEnvironment(ctx context.Context, id int64, name, envType string, actorID int64) (*model.Environment, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	env, err := scanEnvironment(tx.QueryRow(ctx,
		`UPDATE environments SET name = $2, type = $3
		 WHERE id = $1
		 RETURNING id, name, type, manual_status, created_at`,
		id, name, envType))
	if err != nil {
		return nil, err
	}

	err = audit(ctx, tx, model.AuditEntry{
		EnvironmentID: env.ID,
		ActorID:       actorID,
		Action:        model.AuditEnvironmentEdit,
		Detail:        fmt.Sprintf("name=%s type=%s", name, envType),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err)
	}

	return env, nil
}

// SetManualStatus sets the operator override and audits the change.
func (p *Postgres) SetManualStatus(ctx context.Context, id int64, status model.ManualStatus, actorID int64) (*model.Environment, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	env, err := scanEnvironment(tx.QueryRow(ctx,
		`UPDATE environments SET manual_status = $2
		 WHERE id = $1
		 RETURNING id, name, type, manual_status, created_at`,
		id, status))
	if err != nil {
		return nil, err
	}

	err = audit(ctx, tx, model.AuditEntry{
		EnvironmentID: env.ID,
		ActorID:       actorID,
		Action:        model.AuditStatusChanged,
		Detail:        string(status),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err)
	}

	p.logger.Info("Environment status changed",
		zap.Int64("environment_id", env.ID),
		zap.String("status", string(status)),
		zap.Int64("actor_id", actorID),
	)

	return env, nil
}

// EnsureUser provisions a user row on first sight. The insert races are
// absorbed by the unique constraint on username.
func (p *Postgres) EnsureUser(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (username, role) VALUES ($1, 'user')
		 ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		 RETURNING id, username, role`,
		username).Scan(&u.ID, &u.Username, &u.Role)
	if err != nil {
		return nil, mapError(err)
	}

	return &u, nil
}

// GetUser retrieves a single user by ID.
func (p *Postgres) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := p.pool.QueryRow(ctx,
		`SELECT id, username, role FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Username, &u.Role)
	if err != nil {
		return nil, mapError(err)
	}

	return &u, nil
}

// ListUsers returns all users ordered by username.
func (p *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, username, role FROM users ORDER BY username`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role); err != nil {
			return nil, mapError(err)
		}
		users = append(users, u)
	}

	return users, mapError(rows.Err())
}

// ListAuditEntries returns audit entries newest first.
func (p *Postgres) ListAuditEntries(ctx context.Context, environmentID int64, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, environment_id, booking_id, actor_id, action, detail, created_at
		 FROM audit_log
		 WHERE ($1 = 0 OR environment_id = $1)
		 ORDER BY created_at DESC
		 LIMIT $2`,
		environmentID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		err := rows.Scan(&e.ID, &e.EnvironmentID, &e.BookingID, &e.ActorID,
			&e.Action, &e.Detail, &e.CreatedAt)
		if err != nil {
			return nil, mapError(err)
		}
		entries = append(entries, e)
	}

	return entries, mapError(rows.Err())
}

// audit appends one trail entry inside the caller's transaction.
func audit(ctx context.Context, tx pgx.Tx, e model.AuditEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO audit_log (environment_id, booking_id, actor_id, action, detail)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.EnvironmentID, e.BookingID, e.ActorID, e.Action, e.Detail)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}
