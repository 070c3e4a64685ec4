package resolver

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	minBarcodeLen = 8
	maxBarcodeLen = 14
)

var (
	// ErrValidation matches every *ValidationError
	ErrValidation = errors.New("invalid barcode")
	// ErrExhausted is returned when no source produced an accepted record
	ErrExhausted = errors.New("all sources exhausted")

	errSourceTimeout = errors.New("source timed out")
	errSourcePanic   = errors.New("source panicked")
)

// ValidationError rejects a barcode before any cache or network access
type ValidationError struct {
	Barcode string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid barcode %q: %s", e.Barcode, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidateBarcode accepts UPC-A, EAN-13 and GTIN-8..14 sized codes. The value
// is checked as given; no trimming or check digit handling is applied.
func ValidateBarcode(barcode string) error {
	n := utf8.RuneCountInString(barcode)
	switch {
	case n == 0:
		return &ValidationError{Barcode: barcode, Reason: "barcode is required"}
	case n < minBarcodeLen || n > maxBarcodeLen:
		return &ValidationError{
			Barcode: barcode,
			Reason:  fmt.Sprintf("length %d outside %d..%d", n, minBarcodeLen, maxBarcodeLen),
		}
	}
	return nil
}
