package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/invoice-scanner/internal/extraction"
)

const tooLargeMessage = "File is too large. Maximum size is 50MB. Please compress or resize your image."

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoDocumentFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extraction.ErrExtractionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, extraction.ErrUnexpectedResponse), errors.Is(err, extraction.ErrExtractionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes the mapped status. Internal errors
// are not echoed to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", code, "error", err)
	}
	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "Internal server error"
	}
	writeError(w, message, code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListInvoices returns a list of all invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Ensure we always return an array, not nil
	if invoices == nil {
		invoices = []*Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

// upload is a spooled multipart file
type upload struct {
	path        string
	filename    string
	contentType string
}

// handleUploadInvoice streams the multipart upload to the spool and ingests it
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, "Expected a multipart form upload", http.StatusBadRequest)
		return
	}

	var (
		file  *upload
		model string
	)
	defer func() {
		if file != nil {
			if err := s.spool.Delete(file.path); err != nil {
				slog.Warn("Failed to delete spooled upload", "path", file.path, "error", err)
			}
		}
	}()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeFormError(w, err)
			return
		}

		switch part.FormName() {
		case "file":
			if file != nil {
				break
			}
			path, err := s.spool.Save(part.FileName(), part)
			if err != nil {
				part.Close()
				writeFormError(w, err)
				return
			}
			file = &upload{
				path:        path,
				filename:    part.FileName(),
				contentType: part.Header.Get("Content-Type"),
			}
		case "model":
			value, err := io.ReadAll(io.LimitReader(part, 256))
			if err != nil {
				part.Close()
				writeFormError(w, err)
				return
			}
			model = strings.TrimSpace(string(value))
		}
		part.Close()
	}

	if file == nil {
		writeError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}

	// multipart writers label unknown files as octet-stream; infer from the name instead
	contentType := file.contentType
	if strings.EqualFold(contentType, "application/octet-stream") {
		contentType = ""
	}

	f, err := s.spool.Open(file.path)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer f.Close()

	inv, err := s.service.Ingest(r.Context(), Document{
		Filename:    file.filename,
		ContentType: contentType,
		Body:        f,
	}, model)
	if err != nil {
		slog.Error("Error processing invoice", "filename", file.filename, "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

// writeFormError reports a malformed or oversized multipart body
func writeFormError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, tooLargeMessage, http.StatusBadRequest)
		return
	}
	slog.Error("Error reading multipart form", "error", err)
	writeError(w, "Error parsing form", http.StatusBadRequest)
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.service.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleUpdateCategory replaces the category of one invoice
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	inv, err := s.service.UpdateCategory(r.Context(), r.PathValue("id"), req.Category)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleExportInvoices returns all invoices as an XLSX workbook
func (s *Server) handleExportInvoices(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportXLSX(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	w.Write(data)
}
