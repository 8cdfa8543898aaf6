package services

import (
	"errors"
	"fmt"

	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/problem"
	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
)

// ErrorKind classifies why an ingestion run failed.
type ErrorKind string

const (
	ArchiveUnreadable      ErrorKind = "ArchiveUnreadable"
	NoPreviewableFont      ErrorKind = "NoPreviewableFont"
	BinaryParseFailure     ErrorKind = "BinaryParseFailure"
	StorageUploadFailure   ErrorKind = "StorageUploadFailure"
	StorageDownloadFailure ErrorKind = "StorageDownloadFailure"
	StorageDeleteFailure   ErrorKind = "StorageDeleteFailure"
	PersistenceFailure     ErrorKind = "PersistenceFailure"
	ValidationFailure      ErrorKind = "ValidationFailure"
	NotFound               ErrorKind = "NotFound"
)

// IngestError is the failure value of every orchestrator entry point.
type IngestError struct {
	Kind    ErrorKind
	Msg     string
	Err     error
	Invalid []problem.InvalidParam
	// Warnings holds compensation steps that could not be undone.
	Warnings []string
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *IngestError) Unwrap() error { return e.Err }

func newIngestError(kind ErrorKind, err error, format string, args ...any) *IngestError {
	return &IngestError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of an *IngestError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// Outcome is the success value of an ingestion run. Warnings collect the
// non-fatal problems: unparseable binaries, unreadable entries and storage
// deletes that failed.
type Outcome struct {
	ProductID string
	Slug      string
	Deleted   int
	Missing   []string
	Warnings  []string
	Message   string
	Product   *models.Product
}
