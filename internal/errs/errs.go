// Package errs collects the typed error taxonomy shared across the
// firmware model, hex codecs, command/script parsers and the load
// pipeline. Every error surfaces to the top unchanged; nothing in this
// repository recovers from one locally.
package errs

import "fmt"

// Sentinel errors without payload. Compare with errors.Is.
var (
	ErrAddressRangeNotAlignedToPage = fmt.Errorf("address range not aligned to page")
	ErrInvalidDataLength            = fmt.Errorf("invalid data length")
	ErrInvalidAddress               = fmt.Errorf("invalid address")
	ErrImageTooShortForHeader       = fmt.Errorf("image too short for header")
	ErrInvalidHexFile               = fmt.Errorf("invalid hex file")

	ErrDelimiterMissing    = fmt.Errorf("delimiter missing")
	ErrInvalidLength       = fmt.Errorf("invalid length")
	ErrInvalidHexCharacter = fmt.Errorf("invalid hex character")
	ErrInvalidCommand      = fmt.Errorf("invalid command")
	ErrInvalidEncoding     = fmt.Errorf("invalid encoding")
	ErrInvalidHeaderFormat = fmt.Errorf("invalid header format")
	ErrMissingChecksum     = fmt.Errorf("missing checksum")
	ErrInvalidChecksum     = fmt.Errorf("invalid checksum")

	ErrInvalidProductName   = fmt.Errorf("invalid product name")
	ErrCannotParseChangelog = fmt.Errorf("cannot parse changelog")
)

// InvalidConfig is a header/config reconciliation mismatch or a
// structural configuration error. The message names the conflicting
// field and both values.
type InvalidConfig struct {
	Message string
}

func (e *InvalidConfig) Error() string {
	return "invalid config: " + e.Message
}

// NewInvalidConfig formats a mismatch between a config-supplied value
// and a header-supplied value for the named field.
func NewInvalidConfig(field string, configValue, headerValue any) *InvalidConfig {
	return &InvalidConfig{
		Message: fmt.Sprintf("%s mismatch: config has %v, header has %v", field, configValue, headerValue),
	}
}

// Io wraps an unrecoverable file I/O error with the path being acted on.
type Io struct {
	Path string
	Err  error
}

func (e *Io) Error() string {
	return fmt.Sprintf("io error on %s: %v", e.Path, e.Err)
}

func (e *Io) Unwrap() error { return e.Err }

func WrapIo(path string, err error) error {
	if err == nil {
		return nil
	}
	return &Io{Path: path, Err: err}
}

// Git wraps an opaque error from the git description provider.
type Git struct {
	Err error
}

func (e *Git) Error() string { return fmt.Sprintf("git error: %v", e.Err) }
func (e *Git) Unwrap() error { return e.Err }

func WrapGit(err error) error {
	if err == nil {
		return nil
	}
	return &Git{Err: err}
}

// CannotParseConfig wraps an opaque config-deserialization error.
type CannotParseConfig struct {
	Err error
}

func (e *CannotParseConfig) Error() string { return fmt.Sprintf("cannot parse config: %v", e.Err) }
func (e *CannotParseConfig) Unwrap() error { return e.Err }

func WrapCannotParseConfig(err error) error {
	if err == nil {
		return nil
	}
	return &CannotParseConfig{Err: err}
}
