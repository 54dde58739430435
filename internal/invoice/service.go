package invoice

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/zombor/invoice-scanner/internal/extraction"
)

// Extractor runs the two phases of a remote extraction. *extraction.Client implements it.
type Extractor interface {
	Submit(ctx context.Context, document io.Reader, contentType string, model string) (extraction.Operation, error)
	AwaitResult(ctx context.Context, op extraction.Operation) (*extraction.AnalyzeResult, error)
}

// Service handles invoice operations
type Service struct {
	db           DB
	extractor    Extractor
	defaultModel string
}

// NewService creates a new Service. An empty defaultModel selects the invoice model.
func NewService(db DB, extractor Extractor, defaultModel string) *Service {
	if defaultModel == "" {
		defaultModel = extraction.ModelInvoice
	}
	return &Service{
		db:           db,
		extractor:    extractor,
		defaultModel: defaultModel,
	}
}

// Ingest extracts, normalizes and stores one document. Nothing is stored
// unless every step succeeds.
func (s *Service) Ingest(ctx context.Context, doc Document, model string) (*Invoice, error) {
	contentType, err := ValidateDocument(doc.Filename, doc.ContentType)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = s.defaultModel
	}

	log := slog.With("filename", doc.Filename, "model", model)

	op, err := s.extractor.Submit(ctx, doc.Body, contentType, model)
	if err != nil {
		log.Error("Failed to submit document", "error", err)
		return nil, fmt.Errorf("extracting %s: %w", doc.Filename, err)
	}
	log = log.With("operation_id", op.ID)
	log.Info("Document submitted, polling for result")

	result, err := s.extractor.AwaitResult(ctx, op)
	if err != nil {
		log.Error("Extraction failed", "error", err)
		return nil, fmt.Errorf("extracting %s: %w", doc.Filename, err)
	}
	inv, err := Normalize(result)
	if err != nil {
		log.Warn("Normalization failed", "error", err)
		return nil, fmt.Errorf("normalizing %s: %w", doc.Filename, err)
	}
	log.Info("Extraction succeeded", "doc_type", inv.DocType, "documents", len(result.Documents))

	if _, err := s.db.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("saving invoice to database: %w", err)
	}
	log.Info("Invoice stored", "invoice_id", inv.ID, "vendor", inv.Vendor)

	return inv, nil
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	inv, err := s.db.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices returns all invoices
func (s *Service) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// UpdateCategory changes the category of an invoice
func (s *Service) UpdateCategory(ctx context.Context, id string, category string) (*Invoice, error) {
	inv, err := s.db.UpdateCategory(ctx, id, category)
	if err != nil {
		return nil, fmt.Errorf("updating category: %w", err)
	}
	slog.Info("Invoice category updated", "invoice_id", id, "category", inv.Category)
	return inv, nil
}
