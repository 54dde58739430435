package invoice

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PostgresDB implements the DB interface with gorm on PostgreSQL
type PostgresDB struct {
	db *gorm.DB
	storeDeps
}

// NewPostgresDB connects to dsn and migrates the invoices table
func NewPostgresDB(dsn string, opts ...StoreOption) (*PostgresDB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := db.AutoMigrate(&invoiceRow{}); err != nil {
		return nil, fmt.Errorf("migrating invoices table: %w", err)
	}
	return &PostgresDB{db: db, storeDeps: newStoreDeps(opts)}, nil
}

// CreateInvoice inserts a new invoice
func (p *PostgresDB) CreateInvoice(ctx context.Context, inv *Invoice) (string, error) {
	now := p.clock.Now()
	inv.ID = p.ids.Generate()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	row, err := newInvoiceRow(inv)
	if err != nil {
		return "", err
	}
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", fmt.Errorf("inserting invoice: %w", err)
	}
	return inv.ID, nil
}

// GetInvoice retrieves an invoice by ID
func (p *PostgresDB) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	return getRow(p.db.WithContext(ctx), id)
}

func getRow(db *gorm.DB, id string) (*Invoice, error) {
	var row invoiceRow
	err := db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return row.invoice()
}

// ListInvoices returns all invoices in insertion order
func (p *PostgresDB) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	var rows []invoiceRow
	if err := p.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}

	invoices := make([]*Invoice, 0, len(rows))
	for i := range rows {
		inv, err := rows[i].invoice()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// UpdateCategory locks the row, rewrites category and updated_at, and returns the result
func (p *PostgresDB) UpdateCategory(ctx context.Context, id string, category string) (*Invoice, error) {
	category, err := validCategory(category)
	if err != nil {
		return nil, err
	}

	var inv *Invoice
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row invoiceRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("locking invoice: %w", err)
		}

		row.Category = category
		row.UpdatedAt = p.clock.Now()
		err = tx.Model(&invoiceRow{}).Where("seq = ?", row.Seq).
			Updates(map[string]any{"category": row.Category, "updated_at": row.UpdatedAt}).Error
		if err != nil {
			return fmt.Errorf("updating category: %w", err)
		}

		inv, err = row.invoice()
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Close closes the underlying connection pool
func (p *PostgresDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
