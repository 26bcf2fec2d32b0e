// Package ids implements the opaque identifier and code-generation services
// shared by every repository in the core: a 12-byte, time-seeded object id
// and a deterministic name-to-slug transform used for sibling-uniqueness
// checks.
package ids

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Size is the length in bytes of an ID.
const Size = 12

// ErrInvalidID is returned when a string does not decode to exactly Size
// raw bytes.
var ErrInvalidID = fmt.Errorf("invalid id")

// ID is an opaque 96-bit identifier: a 4-byte big-endian unix timestamp
// followed by 8 random bytes. It is never parsed for meaning beyond
// equality and hex round-tripping.
type ID [Size]byte

// New generates a fresh ID seeded with the current time plus 8 random
// bytes, mirroring the teacher's crypto/rand-based id scheme.
func New() (ID, error) {
	var id ID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	if _, err := rand.Read(id[4:]); err != nil {
		return ID{}, fmt.Errorf("generate id: %w", err)
	}
	return id, nil
}

// MustNew is New but panics on a crypto/rand failure. Only used where a
// caller cannot propagate an error (package-level fixtures, tests).
func MustNew() ID {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}

// Parse decodes a 24-character hex string into an ID. Any other length or
// non-hex content is ErrInvalidID.
func Parse(s string) (ID, error) {
	if len(s) != Size*2 {
		return ID{}, ErrInvalidID
	}
	var id ID
	n, err := hex.Decode(id[:], []byte(s))
	if err != nil || n != Size {
		return ID{}, ErrInvalidID
	}
	return id, nil
}

// String returns the 24-character hex wire form.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value (used as the "no id"
// sentinel distinct from a parsed-but-invalid id).
func (id ID) IsZero() bool {
	return id == ID{}
}

// Value implements driver.Valuer, storing the id as its hex string.
func (id ID) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan implements sql.Scanner, accepting the hex string form.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case nil:
		*id = ID{}
		return nil
	default:
		return fmt.Errorf("scan id: unsupported type %T", src)
	}
}

// MarshalJSON renders the id as its hex string, or null for the zero id.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted hex string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*id = ID{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
