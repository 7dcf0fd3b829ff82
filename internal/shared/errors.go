package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrFulfillmentExceeded indicates a requested quantity above the remaining quantity.
	ErrFulfillmentExceeded = errors.New("fulfillment exceeded")
	// ErrBackendRejected is matched by every BackendRejection.
	ErrBackendRejected = errors.New("rejected by erp")
	// ErrTransient marks network failures whose outcome is unknown.
	ErrTransient = errors.New("transient network error")
	// ErrConflict is matched by every ConflictError.
	ErrConflict = errors.New("conflict")
)

// ConflictError reports an operation that the current state of a document does not allow.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrConflict) hold for every ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Conflict builds a ConflictError.
func Conflict(message string) error {
	return &ConflictError{Message: message}
}

// ValidationError is a local, blocking error surfaced inline and never sent to the ERP.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// BackendRejection carries the ERP's own refusal message, markup removed.
type BackendRejection struct {
	Status       int
	Message      string
	PeriodClosed bool
}

func (e *BackendRejection) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrBackendRejected) hold for every BackendRejection.
func (e *BackendRejection) Is(target error) bool {
	return target == ErrBackendRejected
}

// NewBackendRejection classifies an ERP message.
func NewBackendRejection(status int, message string) *BackendRejection {
	message = strings.TrimSpace(StripMarkup(message))
	return &BackendRejection{
		Status:       status,
		Message:      message,
		PeriodClosed: IsClosedPeriodMessage(message),
	}
}

// TransientError wraps an underlying transport failure.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransient) hold for every TransientError.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// UserMessage converts an error into the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rejection *BackendRejection
	if errors.As(err, &rejection) {
		if rejection.PeriodClosed {
			return "Periode akuntansi tertutup. Ubah tanggal posting ke periode yang masih terbuka. Detail: " + rejection.Message
		}
		return rejection.Message
	}
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}
	if errors.Is(err, ErrConflict) {
		return err.Error()
	}
	if errors.Is(err, ErrFulfillmentExceeded) {
		return err.Error()
	}
	if errors.Is(err, ErrTransient) {
		return "Koneksi ke server ERP gagal. Silakan coba simpan kembali."
	}
	if errors.Is(err, ErrNotFound) {
		return "Data tidak ditemukan."
	}
	return "Terjadi kesalahan internal."
}
