package validation

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
)

var ErrValidationFailed = errors.New("validation failed")

// DOCTYPE and ENTITY declarations enable XXE-style attacks and have no
// place in a flat tag/value message; rejected before the bytes reach the
// XML decoder.
var doctypeRegex = regexp.MustCompile(`(?i)<!\s*(DOCTYPE|ENTITY)`)

// CheckUploadSize enforces the configured message size cap.
func CheckUploadSize(size, maxSize int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: empty message body", ErrValidationFailed)
	}
	if size > maxSize {
		return fmt.Errorf("%w: message of %d bytes exceeds limit of %d bytes", ErrValidationFailed, size, maxSize)
	}
	return nil
}

// ScanMessageContent performs cheap structural checks on an uploaded message
// before it is handed to the field extractor.
func ScanMessageContent(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty message body", ErrValidationFailed)
	}
	if bytes.IndexByte(data, 0x00) >= 0 {
		return fmt.Errorf("%w: message contains NUL bytes", ErrValidationFailed)
	}
	if !bytes.Contains(data, []byte("<")) {
		return fmt.Errorf("%w: message does not look like XML", ErrValidationFailed)
	}
	if doctypeRegex.Match(data) {
		return fmt.Errorf("%w: DOCTYPE/ENTITY declarations are not allowed", ErrValidationFailed)
	}
	return nil
}
