package invoice

import "errors"

var (
	// ErrUnsupportedFileType is returned for documents that are not PDF, JPEG or PNG
	ErrUnsupportedFileType = errors.New("unsupported file type: only PDF, JPG, and PNG files are allowed")
	// ErrNoDocumentFound is returned when the extraction result holds no document
	ErrNoDocumentFound = errors.New("no document found in extraction result")
	// ErrNotFound is returned when no invoice has the requested id
	ErrNotFound = errors.New("invoice not found")
	// ErrInvalidInput is returned for malformed update requests
	ErrInvalidInput = errors.New("invalid input")
)
