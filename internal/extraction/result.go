package extraction

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Model variants understood by every engine
const (
	ModelRead    = "prebuilt-read"
	ModelInvoice = "prebuilt-invoice"
	ModelReceipt = "prebuilt-receipt"
)

// Field types reported by the engine
const (
	FieldTypeString   = "string"
	FieldTypeDate     = "date"
	FieldTypeNumber   = "number"
	FieldTypeCurrency = "currency"
	FieldTypeArray    = "array"
	FieldTypeObject   = "object"
)

// AnalyzeResult is the raw extraction result for one document submission.
// It mirrors the analyzeResult payload of the Document Intelligence API.
type AnalyzeResult struct {
	APIVersion string     `json:"apiVersion,omitempty"`
	ModelID    string     `json:"modelId,omitempty"`
	Content    string     `json:"content,omitempty"`
	Pages      []Page     `json:"pages,omitempty"`
	Documents  []Document `json:"documents,omitempty"`
}

// Page describes one analyzed page
type Page struct {
	PageNumber int     `json:"pageNumber"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Unit       string  `json:"unit,omitempty"`
	Lines      []Line  `json:"lines,omitempty"`
}

// Line is a line of recognized text
type Line struct {
	Content string    `json:"content"`
	Polygon []float64 `json:"polygon,omitempty"`
}

// Document is a typed document recognized within the submission
type Document struct {
	DocType         string            `json:"docType,omitempty"`
	BoundingRegions []BoundingRegion  `json:"boundingRegions,omitempty"`
	Fields          map[string]*Field `json:"fields,omitempty"`
	Confidence      *float64          `json:"confidence,omitempty"`
}

// BoundingRegion locates a document or field on a page
type BoundingRegion struct {
	PageNumber int       `json:"pageNumber"`
	Polygon    []float64 `json:"polygon,omitempty"`
}

// Field is a single extracted value. Any part of it may be missing.
type Field struct {
	Type          string            `json:"type,omitempty"`
	Content       *string           `json:"content,omitempty"`
	ValueString   *string           `json:"valueString,omitempty"`
	ValueDate     *string           `json:"valueDate,omitempty"`
	ValueNumber   *float64          `json:"valueNumber,omitempty"`
	ValueCurrency *CurrencyValue    `json:"valueCurrency,omitempty"`
	ValueArray    []json.RawMessage `json:"valueArray,omitempty"`
	ValueObject   map[string]*Field `json:"valueObject,omitempty"`
	Confidence    *float64          `json:"confidence,omitempty"`
}

// CurrencyValue is the value of a currency field
type CurrencyValue struct {
	Amount         decimal.NullDecimal `json:"amount"`
	CurrencySymbol *string             `json:"currencySymbol,omitempty"`
	CurrencyCode   *string             `json:"currencyCode,omitempty"`
}

// FirstDocument returns the first recognized document, or nil when there is none
func (r *AnalyzeResult) FirstDocument() *Document {
	if r == nil || len(r.Documents) == 0 {
		return nil
	}
	return &r.Documents[0]
}

// Field returns the named field, or nil when the document does not carry it
func (d *Document) Field(name string) *Field {
	if d == nil || d.Fields == nil {
		return nil
	}
	return d.Fields[name]
}
