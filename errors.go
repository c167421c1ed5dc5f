package scriptload

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-scriptload/ivalue"
)

// ErrLegacyUnsupported is returned by the default legacy loader when an
// archive carries model.json instead of a data record.
var ErrLegacyUnsupported = errors.New("scriptload: legacy archive format not supported")

// ArchiveReadError reports a record that could not be read from the archive.
type ArchiveReadError struct {
	Archive string
	Record  string
	Err     error
}

func (e *ArchiveReadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("scriptload: archive %s: read record %s: %v", describeArchive(e.Archive), e.Record, e.Err)
}

func (e *ArchiveReadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MalformedArchiveError reports a record whose content does not decode, or
// whose decoded shape does not match what the loader expects.
type MalformedArchiveError struct {
	Archive string
	Record  string
	Reason  string
	Err     error
}

func (e *MalformedArchiveError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("scriptload: archive %s: malformed record %s", describeArchive(e.Archive), e.Record)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedArchiveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TypeResolutionError reports a class name that could not be imported.
type TypeResolutionError struct {
	Archive string
	Class   ivalue.QualifiedName
	Reason  string
	Err     error
}

func (e *TypeResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("scriptload: archive %s: cannot resolve class %s", describeArchive(e.Archive), e.Class)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MissingFieldError reports a direct-map state that lacks a declared
// attribute.
type MissingFieldError struct {
	Class ivalue.QualifiedName
	Field string
}

func (e *MissingFieldError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("scriptload: class %s: state has no value for field '%s'", e.Class, e.Field)
}

// UninitializedFieldError reports a slot left empty by __setstate__.
type UninitializedFieldError struct {
	Class        ivalue.QualifiedName
	Field        string
	ExpectedType *ivalue.Type
}

func (e *UninitializedFieldError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"scriptload: class %s: field '%s' was left uninitialized after __setstate__, but expected a value of type '%s'",
		e.Class, e.Field, e.ExpectedType,
	)
}

func describeArchive(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return name
}

// withArchive fills in the archive name on a typed error raised before the
// archive was known. Only err itself is updated; errors it wraps belong to
// whoever created them.
func withArchive(archive string, err error) error {
	switch e := err.(type) {
	case *ArchiveReadError:
		if e.Archive == "" {
			e.Archive = archive
		}
	case *MalformedArchiveError:
		if e.Archive == "" {
			e.Archive = archive
		}
	case *TypeResolutionError:
		if e.Archive == "" {
			e.Archive = archive
		}
	}
	return err
}
