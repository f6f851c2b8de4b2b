package domain

import (
	"github.com/google/uuid"

	dErrors "consentwindow/pkg/domain-errors"
)

// OwnerID identifies the party that exclusively controls a consent history.
// Invariant: a parsed OwnerID is never the nil UUID.
type OwnerID uuid.UUID

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

// ParseOwnerID constructs an OwnerID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseOwnerID(s string) (OwnerID, error) {
	if s == "" {
		return OwnerID{}, dErrors.New(dErrors.CodeInvalidInput, "owner id cannot be empty")
	}
	if len(s) > maxIDLength {
		return OwnerID{}, dErrors.New(dErrors.CodeInvalidInput, "owner id too long")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return OwnerID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid owner id")
	}
	if parsed == uuid.Nil {
		return OwnerID{}, dErrors.New(dErrors.CodeInvalidInput, "owner id cannot be nil")
	}
	return OwnerID(parsed), nil
}

// NewOwnerID returns a random OwnerID.
func NewOwnerID() OwnerID {
	return OwnerID(uuid.New())
}

func (o OwnerID) String() string {
	return uuid.UUID(o).String()
}

// IsNil reports whether the ID is the zero value.
func (o OwnerID) IsNil() bool {
	return uuid.UUID(o) == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler.
func (o OwnerID) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OwnerID) UnmarshalText(text []byte) error {
	parsed, err := ParseOwnerID(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
