package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// invoiceRow is the relational shape of an Invoice shared by the SQL stores.
// Seq preserves insertion order; list-valued fields are stored as JSON text.
type invoiceRow struct {
	Seq          int64               `gorm:"column:seq;primaryKey;autoIncrement"`
	ID           string              `gorm:"column:id;size:36;uniqueIndex;not null"`
	DocType      string              `gorm:"column:doc_type;not null"`
	Vendor       string              `gorm:"column:vendor;not null"`
	Date         string              `gorm:"column:date;not null"`
	Total        decimal.NullDecimal `gorm:"column:total;type:numeric"`
	Currency     string              `gorm:"column:currency;not null"`
	Tax          decimal.NullDecimal `gorm:"column:tax;type:numeric"`
	Category     string              `gorm:"column:category;not null"`
	LineItems    string              `gorm:"column:line_items;type:text;not null"`
	Confidence   *float64            `gorm:"column:confidence"`
	PageNumber   string              `gorm:"column:page_number;type:text;not null"`
	PaymentTerms string              `gorm:"column:payment_terms;not null"`
	CreatedAt    time.Time           `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;not null"`
}

// TableName overrides the gorm table name
func (invoiceRow) TableName() string {
	return "invoices"
}

func newInvoiceRow(inv *Invoice) (*invoiceRow, error) {
	lineItems := inv.LineItems
	if lineItems == nil {
		lineItems = []json.RawMessage{}
	}
	items, err := json.Marshal(lineItems)
	if err != nil {
		return nil, fmt.Errorf("marshaling line items: %w", err)
	}

	pageNumber := inv.PageNumber
	if pageNumber == nil {
		pageNumber = []int{}
	}
	pages, err := json.Marshal(pageNumber)
	if err != nil {
		return nil, fmt.Errorf("marshaling page numbers: %w", err)
	}

	return &invoiceRow{
		ID:           inv.ID,
		DocType:      inv.DocType,
		Vendor:       inv.Vendor,
		Date:         inv.Date,
		Total:        inv.Total,
		Currency:     inv.Currency,
		Tax:          inv.Tax,
		Category:     inv.Category,
		LineItems:    string(items),
		Confidence:   inv.Confidence,
		PageNumber:   string(pages),
		PaymentTerms: inv.PaymentTerms,
		CreatedAt:    inv.CreatedAt,
		UpdatedAt:    inv.UpdatedAt,
	}, nil
}

func (r *invoiceRow) invoice() (*Invoice, error) {
	inv := &Invoice{
		ID:           r.ID,
		DocType:      r.DocType,
		Vendor:       r.Vendor,
		Date:         r.Date,
		Total:        r.Total,
		Currency:     r.Currency,
		Tax:          r.Tax,
		Category:     r.Category,
		Confidence:   r.Confidence,
		PaymentTerms: r.PaymentTerms,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.LineItems), &inv.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshaling line items of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.PageNumber), &inv.PageNumber); err != nil {
		return nil, fmt.Errorf("unmarshaling page numbers of %s: %w", r.ID, err)
	}
	return inv, nil
}
