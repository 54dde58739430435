package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const bucketName = "invoices"

// DB defines the interface for invoice persistence
type DB interface {
	// CreateInvoice stores a new invoice, assigning its id and timestamps
	CreateInvoice(ctx context.Context, inv *Invoice) (string, error)

	// ListInvoices returns all invoices in insertion order
	ListInvoices(ctx context.Context) ([]*Invoice, error)

	// GetInvoice retrieves an invoice by ID
	GetInvoice(ctx context.Context, id string) (*Invoice, error)

	// UpdateCategory replaces the category of an invoice and returns the updated record
	UpdateCategory(ctx context.Context, id string, category string) (*Invoice, error)

	// Close closes the database connection
	Close() error
}

// IDGenerator generates unique IDs for invoices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates UUIDv7 ids, which sort by creation time
type uuidGenerator struct{}

func (g uuidGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type systemClock struct{}

func (c systemClock) Now() time.Time {
	return time.Now().UTC()
}

// StoreOption customizes a store
type StoreOption func(*storeDeps)

type storeDeps struct {
	ids   IDGenerator
	clock TimeSource
}

// WithIDGenerator replaces the UUIDv7 id generator
func WithIDGenerator(g IDGenerator) StoreOption {
	return func(d *storeDeps) { d.ids = g }
}

// WithTimeSource replaces the wall clock
func WithTimeSource(t TimeSource) StoreOption {
	return func(d *storeDeps) { d.clock = t }
}

func newStoreDeps(opts []StoreOption) storeDeps {
	d := storeDeps{ids: uuidGenerator{}, clock: systemClock{}}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// validCategory trims category and rejects blank values
func validCategory(category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", fmt.Errorf("%w: category must not be empty", ErrInvalidInput)
	}
	return category, nil
}

// BoltDB implements the DB interface using BoltDB. Keys are the invoice ids,
// so cursor order follows the time-ordered ids.
type BoltDB struct {
	db *bbolt.DB
	storeDeps
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string, opts ...StoreOption) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db, storeDeps: newStoreDeps(opts)}, nil
}

// CreateInvoice saves a new invoice to the database
func (b *BoltDB) CreateInvoice(ctx context.Context, inv *Invoice) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := b.clock.Now()
	inv.ID = b.ids.Generate()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(inv.ID)) != nil {
			return fmt.Errorf("invoice %s already exists", inv.ID)
		}
		data, err := json.Marshal(inv)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		return bucket.Put([]byte(inv.ID), data)
	})
	if err != nil {
		return "", err
	}
	return inv.ID, nil
}

// GetInvoice retrieves an invoice by ID
func (b *BoltDB) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var inv *Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns all invoices
func (b *BoltDB) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	invoices := make([]*Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var inv Invoice
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invoice %s: %w", k, err)
			}
			invoices = append(invoices, &inv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// UpdateCategory rewrites category and updatedAt in a single write transaction
func (b *BoltDB) UpdateCategory(ctx context.Context, id string, category string) (*Invoice, error) {
	category, err := validCategory(category)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var inv Invoice
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := json.Unmarshal(data, &inv); err != nil {
			return fmt.Errorf("unmarshaling invoice: %w", err)
		}

		inv.Category = category
		inv.UpdatedAt = b.clock.Now()

		updated, err := json.Marshal(&inv)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
