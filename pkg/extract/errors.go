package extract

import (
	"errors"
	"fmt"
)

// ErrNoUnits is returned when a document parsed cleanly but produced no
// candidate rooms: no readable labels or area annotations were found.
var ErrNoUnits = errors.New("no readable room labels or area annotations found")

// UnsupportedFormatError is returned before any extraction attempt when the
// document extension is not recognised.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q (supported: .dxf, .pdf, .jpg, .jpeg, .png, .tif, .tiff, .bmp)", e.Ext)
}

// CapabilityError is returned when an extraction backend's external
// dependency is unavailable, as opposed to the document being unreadable.
type CapabilityError struct {
	Capability string // what is missing, e.g. "tesseract OCR engine"
	Hint       string // how to get it
	Err        error  // underlying error, if any
}

func (e *CapabilityError) Error() string {
	msg := fmt.Sprintf("missing capability: %s", e.Capability)
	if e.Hint != "" {
		msg += ", " + e.Hint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CapabilityError) Unwrap() error { return e.Err }
