package invoice

import (
	"encoding/json"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Unknown is stored in text fields the extraction did not provide
const Unknown = "Unknown"

// Invoice is the canonical record built from one extraction
type Invoice struct {
	ID           string              `json:"id"`
	DocType      string              `json:"docType"`
	Vendor       string              `json:"vendor"`
	Date         string              `json:"date"` // ISO 8601 date or Unknown
	Total        decimal.NullDecimal `json:"total"`
	Currency     string              `json:"currency"`
	Tax          decimal.NullDecimal `json:"tax"`
	Category     string              `json:"category"`
	LineItems    []json.RawMessage   `json:"lineItems"`
	Confidence   *float64            `json:"confidence"`
	PageNumber   []int               `json:"pageNumber"`
	PaymentTerms string              `json:"paymentTerms"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Document is an uploaded file handed to Ingest. The caller owns Body.
type Document struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
