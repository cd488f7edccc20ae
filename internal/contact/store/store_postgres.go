package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"identity-recon/internal/contact/models"
	"identity-recon/internal/platform/postgres"
	"identity-recon/pkg/platform/sentinel"
	txcontext "identity-recon/pkg/platform/tx"
)

// PostgresStore persists contacts in PostgreSQL. A store built with
// NewPostgres joins any transaction carried in context; one built by InTx is
// bound to that transaction.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// TxOptions controls InTx retry behavior.
type TxOptions struct {
	MaxAttempts int
	Backoff     time.Duration
	// OnRetry is called before each retry with the failed attempt number.
	OnRetry func(attempt int, err error)
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	if s.tx != nil {
		return s.tx
	}
	return txcontext.Using(ctx, s.db)
}

// InTx runs fn inside a READ COMMITTED transaction and commits when fn
// returns nil. Serialization failures and deadlocks roll back and rerun fn
// from scratch, up to MaxAttempts.
func (s *PostgresStore) InTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, store *PostgresStore) error) error {
	attempts := max(opts.MaxAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !postgres.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}
		if opts.Backoff > 0 {
			timer := time.NewTimer(opts.Backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts: %w", sentinel.ErrConflict, attempts, err)
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(ctx context.Context, store *PostgresStore) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(txcontext.WithTx(ctx, tx), &PostgresStore{db: s.db, tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Find returns contacts matching filter, ordered by creation.
func (s *PostgresStore) Find(ctx context.Context, filter models.Filter) ([]*models.Contact, error) {
	where, args, err := compileFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE ` + where + ` ORDER BY created_at, id`
	return s.query(ctx, query, args...)
}

// FindByID returns one contact or sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Contact, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contact %d: %w", id, err)
	}
	return c, nil
}

// List returns every contact ordered by id.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Contact, error) {
	return s.query(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY id`)
}

// Create inserts a contact and returns it with its assigned id and timestamps.
func (s *PostgresStore) Create(ctx context.Context, nc models.NewContact) (*models.Contact, error) {
	query := `
		INSERT INTO contacts (email, phone_number, linked_id, link_precedence)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + contactColumns
	row := s.execer(ctx).QueryRowContext(ctx, query,
		nullString(nc.Email),
		nullString(nc.PhoneNumber),
		nullInt64(nc.LinkedID),
		string(nc.LinkPrecedence),
	)
	c, err := scanContact(row)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

// UpdateLinks sets precedence and link on every id in one statement and
// returns the number of rows changed.
func (s *PostgresStore) UpdateLinks(ctx context.Context, ids []int64, precedence models.LinkPrecedence, linkedID *int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	clause, args := inClause([]any{string(precedence), nullInt64(linkedID)}, ids)
	query := `
		UPDATE contacts
		SET link_precedence = $1, linked_id = $2, updated_at = clock_timestamp()
		WHERE id IN (` + clause + `)`
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update links: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update links rows affected: %w", err)
	}
	return int(n), nil
}

// LockKeys takes a transaction-scoped advisory lock per key, in sorted order.
// Outside a transaction the locks are released as soon as each statement ends.
func (s *PostgresStore) LockKeys(ctx context.Context, keys []string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	exec := s.execer(ctx)
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("lock key %q: %w", key, err)
		}
	}
	return nil
}

// Health pings the database.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		c          models.Contact
		email      sql.NullString
		phone      sql.NullString
		linkedID   sql.NullInt64
		precedence string
	)
	if err := row.Scan(&c.ID, &email, &phone, &linkedID, &precedence, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := models.ParseLinkPrecedence(precedence)
	if err != nil {
		return nil, err
	}
	c.LinkPrecedence = p
	if email.Valid {
		c.Email = &email.String
	}
	if phone.Valid {
		c.PhoneNumber = &phone.String
	}
	if linkedID.Valid {
		c.LinkedID = &linkedID.Int64
	}
	return &c, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
