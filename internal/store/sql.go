package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore persists contracts, payment attempts and notifications.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// Open connects with driver "sqlite" (modernc) or "postgres" (pgx).
func Open(driver, dsn string) (*SQLStore, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = sql.Open("sqlite", dsn)
		if err == nil {
			// one writer; also keeps ":memory:" on a single connection
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		if err == nil {
			db.SetMaxOpenConns(20)
			db.SetConnMaxIdleTime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return New(db, driver), nil
}

func New(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind turns '?' placeholders into '$n' for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

/******************** Contracts ********************/

const contractColumns = `id, contract_number, user_id, product_name, premium, status, payment_details, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*Contract, error) {
	var (
		c                Contract
		status           string
		details          sql.NullString
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.ContractNumber, &c.UserID, &c.ProductName, &c.Premium,
		&status, &details, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Status = ContractStatus(status)
	c.StatusLabel = c.Status.Label()
	c.CreatedAt = time.Unix(created, 0).UTC()
	c.UpdatedAt = time.Unix(updated, 0).UTC()
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &c.PaymentDetails); err != nil {
			return nil, fmt.Errorf("decode payment_details of %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

func (s *SQLStore) CreateContract(ctx context.Context, c *Contract) error {
	if c.Status == "" {
		c.Status = StatusAwaitingPayment
	}
	if !c.Status.Valid() {
		return fmt.Errorf("invalid contract status %q", c.Status)
	}
	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	var details any
	if len(c.PaymentDetails) > 0 {
		b, err := json.Marshal(c.PaymentDetails)
		if err != nil {
			return err
		}
		details = string(b)
	}

	_, err := s.exec(ctx, `INSERT INTO contracts (`+contractColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ContractNumber, c.UserID, c.ProductName, c.Premium, string(c.Status), details,
		c.CreatedAt.Unix(), c.UpdatedAt.Unix())
	return err
}

func (s *SQLStore) FindContract(ctx context.Context, id string) (*Contract, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+contractColumns+` FROM contracts WHERE id = ?`), id)
	return scanContract(row)
}

// FindContractForOwner returns ErrNotFound for contracts of other users.
func (s *SQLStore) FindContractForOwner(ctx context.Context, id, userID string) (*Contract, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+contractColumns+` FROM contracts WHERE id = ? AND user_id = ?`), id, userID)
	return scanContract(row)
}

func (s *SQLStore) ListContractsByUser(ctx context.Context, userID string) ([]*Contract, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+contractColumns+` FROM contracts WHERE user_id = ? ORDER BY created_at DESC, id`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// transition moves a contract from one status to another only if it is
// still in the expected status. It reports whether this call won.
func (s *SQLStore) transition(ctx context.Context, id string, from, to ContractStatus, details map[string]string) (bool, error) {
	now := s.now().UTC().Unix()
	var (
		n   int64
		err error
	)
	if details != nil {
		b, mErr := json.Marshal(details)
		if mErr != nil {
			return false, mErr
		}
		n, err = s.exec(ctx,
			`UPDATE contracts SET status = ?, payment_details = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), string(b), now, id, string(from))
	} else {
		n, err = s.exec(ctx,
			`UPDATE contracts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), now, id, string(from))
	}
	if err != nil {
		return false, fmt.Errorf("update contract %s %s->%s: %w", id, from, to, err)
	}
	return n == 1, nil
}

// ActivateContract sets AwaitingPayment -> Active and stores the verified
// gateway payload. false means another writer got there first.
func (s *SQLStore) ActivateContract(ctx context.Context, id string, details map[string]string) (bool, error) {
	if details == nil {
		details = map[string]string{}
	}
	return s.transition(ctx, id, StatusAwaitingPayment, StatusActive, details)
}

func (s *SQLStore) MarkPaymentFailed(ctx context.Context, id string) (bool, error) {
	return s.transition(ctx, id, StatusAwaitingPayment, StatusPaymentFailed, nil)
}

// ReopenPayment lets a failed contract be paid again.
func (s *SQLStore) ReopenPayment(ctx context.Context, id string) (bool, error) {
	return s.transition(ctx, id, StatusPaymentFailed, StatusAwaitingPayment, nil)
}

/******************** Payment attempts ********************/

func (s *SQLStore) CreateAttempt(ctx context.Context, a *Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO payment_attempts (txn_ref, contract_id, amount, created_at) VALUES (?, ?, ?, ?)`,
		a.TxnRef, a.ContractID, a.Amount, a.CreatedAt.Unix())
	return err
}

func (s *SQLStore) FindAttempt(ctx context.Context, txnRef string) (*Attempt, error) {
	var (
		a         Attempt
		code      sql.NullString
		created   int64
		completed sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT txn_ref, contract_id, amount, response_code, created_at, completed_at
		 FROM payment_attempts WHERE txn_ref = ?`), txnRef).
		Scan(&a.TxnRef, &a.ContractID, &a.Amount, &code, &created, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ResponseCode = code.String
	a.CreatedAt = time.Unix(created, 0).UTC()
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		a.CompletedAt = &t
	}
	return &a, nil
}

// CompleteAttempt records the first response code seen for an attempt.
func (s *SQLStore) CompleteAttempt(ctx context.Context, txnRef, responseCode string) error {
	_, err := s.exec(ctx,
		`UPDATE payment_attempts SET response_code = ?, completed_at = ? WHERE txn_ref = ? AND completed_at IS NULL`,
		responseCode, s.now().UTC().Unix(), txnRef)
	return err
}

/******************** Notifications ********************/

// CreateNotification is a no-op for an id that already exists, so
// redelivered events are harmless.
func (s *SQLStore) CreateNotification(ctx context.Context, n *Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO notifications (id, user_id, message, link, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, n.Message, n.Link, n.Read, n.CreatedAt.Unix())
	return err
}

func (s *SQLStore) ListNotifications(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, user_id, message, link, is_read, created_at FROM notifications
		 WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var (
			n       Notification
			link    sql.NullString
			created int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &link, &n.Read, &created); err != nil {
			return nil, err
		}
		n.Link = link.String
		n.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	n, err := s.exec(ctx, `UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`, true, id, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteNotification(ctx context.Context, id, userID string) error {
	n, err := s.exec(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
