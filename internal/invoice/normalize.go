package invoice

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-scanner/internal/extraction"
)

// dateLayouts are tried in order when a date field has no typed value
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// extractor reads one value from a document, reporting whether it was present
type extractor[T any] func(doc *extraction.Document) (T, bool)

// mapping fills one canonical field of an invoice
type mapping interface {
	field() string
	apply(doc *extraction.Document, inv *Invoice) bool
}

// fieldMapping is a single entry of the normalization table
type fieldMapping[T any] struct {
	name     string
	extract  extractor[T]
	fallback func() T
	assign   func(inv *Invoice, v T)
}

func (m fieldMapping[T]) field() string { return m.name }

// apply sets the field and reports whether the extracted value was used
func (m fieldMapping[T]) apply(doc *extraction.Document, inv *Invoice) bool {
	v, ok := m.extract(doc)
	if !ok {
		v = m.fallback()
	}
	m.assign(inv, v)
	return ok
}

// invoiceFields maps every canonical field to its raw source. Entries are
// independent: a missing source only ever defaults its own field.
var invoiceFields = []mapping{
	fieldMapping[string]{
		name:     "docType",
		extract:  docType,
		fallback: unknown,
		assign:   func(inv *Invoice, v string) { inv.DocType = v },
	},
	fieldMapping[string]{
		name:     "vendor",
		extract:  firstOf(content("VendorName"), content("MerchantName")),
		fallback: unknown,
		assign:   func(inv *Invoice, v string) { inv.Vendor = v },
	},
	fieldMapping[string]{
		name:     "date",
		extract:  firstOf(date("InvoiceDate"), date("TransactionDate")),
		fallback: unknown,
		assign:   func(inv *Invoice, v string) { inv.Date = v },
	},
	fieldMapping[decimal.NullDecimal]{
		name:     "total",
		extract:  firstOf(amount("InvoiceTotal"), amount("Total")),
		fallback: missingAmount,
		assign:   func(inv *Invoice, v decimal.NullDecimal) { inv.Total = v },
	},
	fieldMapping[string]{
		name:     "currency",
		extract:  firstOf(currencyCode("InvoiceTotal"), currencyCode("Total")),
		fallback: unknown,
		assign:   func(inv *Invoice, v string) { inv.Currency = v },
	},
	fieldMapping[decimal.NullDecimal]{
		name:     "tax",
		extract:  amount("TotalTax"),
		fallback: missingAmount,
		assign:   func(inv *Invoice, v decimal.NullDecimal) { inv.Tax = v },
	},
	fieldMapping[string]{
		name:     "category",
		extract:  content("Category"),
		fallback: unknown,
		assign:   func(inv *Invoice, v string) { inv.Category = v },
	},
	fieldMapping[[]json.RawMessage]{
		name:     "lineItems",
		extract:  array("Items"),
		fallback: func() []json.RawMessage { return []json.RawMessage{} },
		assign:   func(inv *Invoice, v []json.RawMessage) { inv.LineItems = v },
	},
	fieldMapping[*float64]{
		name:     "confidence",
		extract:  confidence,
		fallback: func() *float64 { return nil },
		assign:   func(inv *Invoice, v *float64) { inv.Confidence = v },
	},
	fieldMapping[[]int]{
		name:     "pageNumber",
		extract:  pageNumbers,
		fallback: func() []int { return []int{} },
		assign:   func(inv *Invoice, v []int) { inv.PageNumber = v },
	},
	fieldMapping[string]{
		name:     "paymentTerms",
		extract:  content("PaymentTerm"),
		fallback: unknown,
		assign:   func(inv *Invoice, v string) { inv.PaymentTerms = v },
	},
}

// Normalize maps the first document of an extraction result onto a new Invoice.
// It only fails when the result holds no document.
func Normalize(result *extraction.AnalyzeResult) (*Invoice, error) {
	doc := result.FirstDocument()
	if doc == nil {
		return nil, ErrNoDocumentFound
	}

	inv := &Invoice{}
	var defaulted []string
	for _, m := range invoiceFields {
		if !m.apply(doc, inv) {
			defaulted = append(defaulted, m.field())
		}
	}
	if len(defaulted) > 0 {
		slog.Debug("Fields defaulted during normalization", "doc_type", inv.DocType, "fields", defaulted)
	}
	return inv, nil
}

func unknown() string { return Unknown }

func missingAmount() decimal.NullDecimal { return decimal.NullDecimal{} }

// firstOf returns the first value any of extractors finds
func firstOf[T any](extractors ...extractor[T]) extractor[T] {
	return func(doc *extraction.Document) (T, bool) {
		for _, extract := range extractors {
			if v, ok := extract(doc); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
}

func docType(doc *extraction.Document) (string, bool) {
	s := strings.TrimSpace(doc.DocType)
	return s, s != ""
}

func content(name string) extractor[string] {
	return func(doc *extraction.Document) (string, bool) {
		f := doc.Field(name)
		if f == nil || f.Content == nil {
			return "", false
		}
		s := strings.TrimSpace(*f.Content)
		return s, s != ""
	}
}

func date(name string) extractor[string] {
	return func(doc *extraction.Document) (string, bool) {
		f := doc.Field(name)
		if f == nil {
			return "", false
		}
		for _, raw := range []*string{f.ValueDate, f.Content} {
			if raw == nil {
				continue
			}
			if d, ok := parseDate(*raw); ok {
				return d, true
			}
		}
		return "", false
	}
}

func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func amount(name string) extractor[decimal.NullDecimal] {
	return func(doc *extraction.Document) (decimal.NullDecimal, bool) {
		f := doc.Field(name)
		if f == nil {
			return decimal.NullDecimal{}, false
		}
		if f.ValueCurrency != nil && f.ValueCurrency.Amount.Valid {
			return f.ValueCurrency.Amount, true
		}
		if f.ValueNumber != nil {
			return decimal.NewNullDecimal(decimal.NewFromFloat(*f.ValueNumber)), true
		}
		return decimal.NullDecimal{}, false
	}
}

func currencyCode(name string) extractor[string] {
	return func(doc *extraction.Document) (string, bool) {
		f := doc.Field(name)
		if f == nil || f.ValueCurrency == nil || f.ValueCurrency.CurrencyCode == nil {
			return "", false
		}
		code := strings.ToUpper(strings.TrimSpace(*f.ValueCurrency.CurrencyCode))
		return code, code != ""
	}
}

func array(name string) extractor[[]json.RawMessage] {
	return func(doc *extraction.Document) ([]json.RawMessage, bool) {
		f := doc.Field(name)
		if f == nil || f.ValueArray == nil {
			return nil, false
		}
		items := make([]json.RawMessage, len(f.ValueArray))
		copy(items, f.ValueArray)
		return items, true
	}
}

func confidence(doc *extraction.Document) (*float64, bool) {
	if doc.Confidence == nil {
		return nil, false
	}
	c := *doc.Confidence
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return &c, true
}

func pageNumbers(doc *extraction.Document) ([]int, bool) {
	if len(doc.BoundingRegions) == 0 {
		return nil, false
	}
	pages := make([]int, 0, len(doc.BoundingRegions))
	for _, region := range doc.BoundingRegions {
		pages = append(pages, region.PageNumber)
	}
	return pages, true
}
