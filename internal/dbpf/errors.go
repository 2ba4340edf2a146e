package dbpf

import "fmt"

// FormatError reports a structural fault in the container: unknown magic, an
// invalid compression label, an invalid boolean byte, or a truncated read.
// It is always fatal for the archive being decoded.
type FormatError struct {
	msg string
	err error
}

func (e *FormatError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *FormatError) Unwrap() error { return e.err }

func formatErrf(format string, args ...any) error {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

func wrapFormatErr(err error, format string, args ...any) error {
	return &FormatError{msg: fmt.Sprintf(format, args...), err: err}
}
