package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

var invoiceSchema = jsonschema.MustCompileString("invoice.json", `{
  "type": "object",
  "properties": {
    "docType":      {"type": ["string", "null"]},
    "vendorName":   {"type": ["string", "null"]},
    "invoiceDate":  {"type": ["string", "null"]},
    "invoiceTotal": {"type": ["number", "null"]},
    "currencyCode": {"type": ["string", "null"], "pattern": "^[A-Za-z]{3}$"},
    "totalTax":     {"type": ["number", "null"]},
    "paymentTerms": {"type": ["string", "null"]},
    "category":     {"type": ["string", "null"]},
    "items":        {"type": ["array", "null"], "items": {"type": "object"}},
    "confidence":   {"type": ["number", "null"], "minimum": 0, "maximum": 1}
  }
}`)

var readSchema = jsonschema.MustCompileString("read.json", `{
  "type": "object",
  "properties": {
    "content": {"type": "string"}
  },
  "required": ["content"]
}`)

// modelInvoice is the JSON object the vision models are asked to return
type modelInvoice struct {
	DocType      *string             `json:"docType"`
	VendorName   *string             `json:"vendorName"`
	InvoiceDate  *string             `json:"invoiceDate"`
	InvoiceTotal decimal.NullDecimal `json:"invoiceTotal"`
	CurrencyCode *string             `json:"currencyCode"`
	TotalTax     decimal.NullDecimal `json:"totalTax"`
	PaymentTerms *string             `json:"paymentTerms"`
	Category     *string             `json:"category"`
	Items        []json.RawMessage   `json:"items"`
	Confidence   *float64            `json:"confidence"`
}

// extractJSONObject strips markdown fences and any text around the outermost object
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[startIdx : endIdx+1], nil
}

// parseModelResponse turns a vision model answer into an AnalyzeResult for model
func parseModelResponse(text string, model string) (*AnalyzeResult, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if model == ModelRead {
		if err := readSchema.Validate(v); err != nil {
			return nil, fmt.Errorf("json does not match schema: %w", err)
		}
		var read struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(raw), &read); err != nil {
			return nil, fmt.Errorf("unmarshaling json: %w", err)
		}
		return &AnalyzeResult{
			ModelID: model,
			Content: read.Content,
			Pages:   []Page{{PageNumber: 1}},
		}, nil
	}

	if err := invoiceSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}
	var inv modelInvoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return inv.toResult(model), nil
}

func (m *modelInvoice) toResult(model string) *AnalyzeResult {
	docType := "invoice"
	if model == ModelReceipt {
		docType = "receipt"
	}
	if m.DocType != nil && strings.TrimSpace(*m.DocType) != "" {
		docType = strings.TrimSpace(*m.DocType)
	}

	fields := make(map[string]*Field)
	if m.VendorName != nil {
		fields["VendorName"] = &Field{Type: FieldTypeString, Content: m.VendorName, ValueString: m.VendorName}
	}
	if m.InvoiceDate != nil {
		fields["InvoiceDate"] = &Field{Type: FieldTypeDate, Content: m.InvoiceDate, ValueDate: m.InvoiceDate}
	}
	if m.InvoiceTotal.Valid || m.CurrencyCode != nil {
		var code *string
		if m.CurrencyCode != nil {
			upper := strings.ToUpper(*m.CurrencyCode)
			code = &upper
		}
		fields["InvoiceTotal"] = &Field{
			Type:          FieldTypeCurrency,
			ValueCurrency: &CurrencyValue{Amount: m.InvoiceTotal, CurrencyCode: code},
		}
	}
	if m.TotalTax.Valid {
		fields["TotalTax"] = &Field{
			Type:          FieldTypeCurrency,
			ValueCurrency: &CurrencyValue{Amount: m.TotalTax},
		}
	}
	if m.PaymentTerms != nil {
		fields["PaymentTerm"] = &Field{Type: FieldTypeString, Content: m.PaymentTerms, ValueString: m.PaymentTerms}
	}
	if m.Category != nil {
		fields["Category"] = &Field{Type: FieldTypeString, Content: m.Category, Confidence: m.Confidence}
	}
	if m.Items != nil {
		fields["Items"] = &Field{Type: FieldTypeArray, ValueArray: m.Items}
	}

	return &AnalyzeResult{
		ModelID: model,
		Pages:   []Page{{PageNumber: 1}},
		Documents: []Document{{
			DocType:         docType,
			BoundingRegions: []BoundingRegion{{PageNumber: 1}},
			Fields:          fields,
			Confidence:      m.Confidence,
		}},
	}
}
