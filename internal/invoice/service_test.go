package invoice

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-scanner/internal/extraction"
)

// mockDB is an in-memory DB
type mockDB struct {
	mu        sync.Mutex
	invoices  []*Invoice
	ids       sequentialIDs
	createErr error
	listErr   error
}

func newMockDB() *mockDB {
	return &mockDB{}
}

func (m *mockDB) CreateInvoice(ctx context.Context, inv *Invoice) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	inv.ID = m.ids.Generate()
	inv.CreatedAt = clockStart
	inv.UpdatedAt = clockStart
	m.invoices = append(m.invoices, inv)
	return inv.ID, nil
}

func (m *mockDB) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]*Invoice{}, m.invoices...), nil
}

func (m *mockDB) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDB) UpdateCategory(ctx context.Context, id string, category string) (*Invoice, error) {
	category, err := validCategory(category)
	if err != nil {
		return nil, err
	}
	inv, err := m.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.Category = category
	return inv, nil
}

func (m *mockDB) Close() error {
	return nil
}

// mockExtractor records submissions and returns scripted results
type mockExtractor struct {
	mu           sync.Mutex
	result       *extraction.AnalyzeResult
	submitErr    error
	awaitErr     error
	contentTypes []string
	models       []string
	bodies       []string
	awaited      int
}

func newMockExtractor() *mockExtractor {
	return &mockExtractor{result: acmeResult()}
}

func (m *mockExtractor) Submit(ctx context.Context, document io.Reader, contentType string, model string) (extraction.Operation, error) {
	body, err := io.ReadAll(document)
	if err != nil {
		return extraction.Operation{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.contentTypes = append(m.contentTypes, contentType)
	m.models = append(m.models, model)
	m.bodies = append(m.bodies, string(body))
	if m.submitErr != nil {
		return extraction.Operation{}, m.submitErr
	}
	return extraction.Operation{ID: "op-1"}, nil
}

func (m *mockExtractor) AwaitResult(ctx context.Context, op extraction.Operation) (*extraction.AnalyzeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awaited++
	if m.awaitErr != nil {
		return nil, m.awaitErr
	}
	return m.result, nil
}

func (m *mockExtractor) submissions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.models)
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		db        *mockDB
		extractor *mockExtractor
		service   *Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = newMockDB()
		extractor = newMockExtractor()
		service = NewService(db, extractor, "")
	})

	Describe("Ingest", func() {
		var (
			doc   Document
			model string
			inv   *Invoice
			err   error
		)

		BeforeEach(func() {
			doc = Document{
				Filename:    "acme.pdf",
				ContentType: "application/pdf",
				Body:        strings.NewReader("%PDF-1.7 acme"),
			}
			model = ""
		})

		JustBeforeEach(func() {
			inv, err = service.Ingest(ctx, doc, model)
		})

		When("extraction succeeds", func() {
			It("should return the stored invoice", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(inv.ID).To(Equal("inv-001"))
				Expect(inv.Vendor).To(Equal("Acme Corp"))
				Expect(inv.Date).To(Equal("2024-01-15"))
				Expect(inv.Total.Decimal.StringFixed(2)).To(Equal("150.00"))
				Expect(inv.Currency).To(Equal("USD"))
			})

			It("should persist exactly one record", func() {
				invoices, _ := db.ListInvoices(ctx)
				Expect(invoices).To(HaveLen(1))
				Expect(invoices[0]).To(BeIdenticalTo(inv))
			})

			It("should submit the document body with its media type", func() {
				Expect(extractor.bodies).To(Equal([]string{"%PDF-1.7 acme"}))
				Expect(extractor.contentTypes).To(Equal([]string{"application/pdf"}))
				Expect(extractor.awaited).To(Equal(1))
			})

			It("should use the default model", func() {
				Expect(extractor.models).To(Equal([]string{extraction.ModelInvoice}))
			})
		})

		When("a model is requested", func() {
			BeforeEach(func() {
				model = extraction.ModelReceipt
			})

			It("should submit with that model", func() {
				Expect(extractor.models).To(Equal([]string{extraction.ModelReceipt}))
			})
		})

		When("the service was built with another default model", func() {
			BeforeEach(func() {
				service = NewService(db, extractor, extraction.ModelReceipt)
			})

			It("should fall back to it", func() {
				Expect(extractor.models).To(Equal([]string{extraction.ModelReceipt}))
			})
		})

		When("the media type is missing", func() {
			BeforeEach(func() {
				doc.Filename = "scan.png"
				doc.ContentType = ""
			})

			It("should infer it from the extension", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(extractor.contentTypes).To(Equal([]string{"image/png"}))
			})
		})

		When("the document is a .docx", func() {
			BeforeEach(func() {
				doc.Filename = "invoice.docx"
				doc.ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
			})

			It("should return ErrUnsupportedFileType before contacting the engine", func() {
				Expect(err).To(MatchError(ErrUnsupportedFileType))
				Expect(inv).To(BeNil())
				Expect(extractor.submissions()).To(Equal(0))
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("submission is rejected", func() {
			var rejection *extraction.ResponseError

			BeforeEach(func() {
				rejection = &extraction.ResponseError{StatusCode: 401, Code: "Unauthorized", Message: "bad key"}
				extractor.submitErr = rejection
			})

			It("should surface the engine error unchanged", func() {
				Expect(err).To(MatchError(extraction.ErrUnexpectedResponse))
				var responseErr *extraction.ResponseError
				Expect(errors.As(err, &responseErr)).To(BeTrue())
				Expect(responseErr).To(BeIdenticalTo(rejection))
			})

			It("should not poll or persist", func() {
				Expect(extractor.awaited).To(Equal(0))
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("the operation fails", func() {
			BeforeEach(func() {
				extractor.awaitErr = &extraction.OperationError{OperationID: "op-1", Status: extraction.StatusFailed, Code: "InvalidContent"}
			})

			It("should return ErrExtractionFailed and persist nothing", func() {
				Expect(err).To(MatchError(extraction.ErrExtractionFailed))
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("polling times out", func() {
			BeforeEach(func() {
				extractor.awaitErr = extraction.ErrExtractionTimeout
			})

			It("should return ErrExtractionTimeout and persist nothing", func() {
				Expect(err).To(MatchError(extraction.ErrExtractionTimeout))
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("the result has no documents", func() {
			BeforeEach(func() {
				extractor.result = &extraction.AnalyzeResult{ModelID: extraction.ModelRead, Content: "text"}
			})

			It("should return ErrNoDocumentFound and persist nothing", func() {
				Expect(err).To(MatchError(ErrNoDocumentFound))
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("the extractor returns no result at all", func() {
			BeforeEach(func() {
				extractor.result = nil
			})

			It("should return ErrNoDocumentFound and persist nothing", func() {
				Expect(err).To(MatchError(ErrNoDocumentFound))
				Expect(inv).To(BeNil())
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("the store fails", func() {
			BeforeEach(func() {
				db.createErr = errors.New("disk full")
			})

			It("should return the wrapped error", func() {
				Expect(err).To(MatchError(ContainSubstring("saving invoice to database: disk full")))
				Expect(inv).To(BeNil())
			})
		})
	})

	Describe("GetInvoice", func() {
		It("should wrap ErrNotFound", func() {
			_, err := service.GetInvoice(ctx, "missing")
			Expect(err).To(MatchError(ErrNotFound))
			Expect(err).NotTo(MatchError(extraction.ErrExtractionFailed))
		})
	})

	Describe("UpdateCategory", func() {
		It("should update an ingested invoice", func() {
			stored, err := service.Ingest(ctx, Document{Filename: "a.pdf", Body: strings.NewReader("%PDF")}, "")
			Expect(err).NotTo(HaveOccurred())

			inv, err := service.UpdateCategory(ctx, stored.ID, "Travel")
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Category).To(Equal("Travel"))
		})

		It("should reject a blank category", func() {
			_, err := service.UpdateCategory(ctx, "inv-001", "")
			Expect(err).To(MatchError(ErrInvalidInput))
		})
	})

	Describe("ListInvoices", func() {
		It("should wrap store errors", func() {
			db.listErr = errors.New("boom")
			_, err := service.ListInvoices(ctx)
			Expect(err).To(MatchError("listing invoices: boom"))
		})
	})
})
