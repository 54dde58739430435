package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Register the sqlite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS invoices (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	doc_type      TEXT NOT NULL,
	vendor        TEXT NOT NULL,
	date          TEXT NOT NULL,
	total         TEXT,
	currency      TEXT NOT NULL,
	tax           TEXT,
	category      TEXT NOT NULL,
	line_items    TEXT NOT NULL,
	confidence    REAL,
	page_number   TEXT NOT NULL,
	payment_terms TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
)`

const invoiceColumns = `id, doc_type, vendor, date, total, currency, tax, category,
	line_items, confidence, page_number, payment_terms, created_at, updated_at`

// SQLiteDB implements the DB interface on a single-file SQLite database
type SQLiteDB struct {
	db *sql.DB
	storeDeps
}

// NewSQLiteDB opens or creates the database at path
func NewSQLiteDB(path string, opts ...StoreOption) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteDB{db: db, storeDeps: newStoreDeps(opts)}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(s rowScanner) (*Invoice, error) {
	var (
		row                  invoiceRow
		createdAt, updatedAt string
	)
	err := s.Scan(&row.ID, &row.DocType, &row.Vendor, &row.Date, &row.Total, &row.Currency,
		&row.Tax, &row.Category, &row.LineItems, &row.Confidence, &row.PageNumber,
		&row.PaymentTerms, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if row.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", row.ID, err)
	}
	if row.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at of %s: %w", row.ID, err)
	}
	return row.invoice()
}

// CreateInvoice inserts a new invoice
func (s *SQLiteDB) CreateInvoice(ctx context.Context, inv *Invoice) (string, error) {
	now := s.clock.Now()
	inv.ID = s.ids.Generate()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	row, err := newInvoiceRow(inv)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.DocType, row.Vendor, row.Date, row.Total, row.Currency, row.Tax, row.Category,
		row.LineItems, row.Confidence, row.PageNumber, row.PaymentTerms,
		row.CreatedAt.Format(time.RFC3339Nano), row.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("inserting invoice: %w", err)
	}
	return inv.ID, nil
}

// GetInvoice retrieves an invoice by ID
func (s *SQLiteDB) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	return s.getInvoice(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteDB) getInvoice(ctx context.Context, q querier, id string) (*Invoice, error) {
	inv, err := scanInvoice(q.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices returns all invoices in insertion order
func (s *SQLiteDB) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]*Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// UpdateCategory rewrites category and updated_at in one transaction
func (s *SQLiteDB) UpdateCategory(ctx context.Context, id string, category string) (*Invoice, error) {
	category, err := validCategory(category)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET category = ?, updated_at = ? WHERE id = ?`,
		category, s.clock.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return nil, fmt.Errorf("updating category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating category: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	inv, err := s.getInvoice(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing category update: %w", err)
	}
	return inv, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
