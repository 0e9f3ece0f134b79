// Package ids maps platform primary keys to the identifiers used by the
// logistics center and back.
//
// The current encoding is "<namespace>_<id>" where namespace is at most ten
// characters. Customer orders are namespaced by their organization name; every
// other entity uses the configured prefix. The legacy encoding is the id
// zero-padded to at least ten digits and is still accepted on input. Both
// encodings carry a leading minus sign for negative ids.
package ids

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

const (
	namespaceMaxLen = 10
	legacyWidth     = 10
	separator       = "_"

	DefaultPrefix = "PLATFORM"
)

// ID is a decoded logistics center identifier.
type ID struct {
	Namespace string
	Value     int64
	Legacy    bool
}

// Codec encodes and decodes logistics center identifiers.
type Codec struct {
	prefix string
}

// NewCodec builds a codec whose default namespace is prefix.
func NewCodec(prefix string) Codec {
	prefix = Namespace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Codec{prefix: prefix}
}

// Prefix returns the default namespace.
func (c Codec) Prefix() string {
	if c.prefix == "" {
		return DefaultPrefix
	}
	return c.prefix
}

// Encode returns the canonical identifier under the default namespace.
func (c Codec) Encode(id int64) string {
	return EncodeWithNamespace(c.Prefix(), id)
}

// EncodeWithNamespace returns the canonical identifier under namespace,
// truncated to ten characters.
func EncodeWithNamespace(namespace string, id int64) string {
	return Namespace(namespace) + separator + strconv.FormatInt(id, 10)
}

// Namespace trims and truncates a namespace to ten characters.
func Namespace(value string) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= namespaceMaxLen {
		return value
	}
	runes := []rune(value)
	return string(runes[:namespaceMaxLen])
}

// EncodeLegacy returns the deprecated zero-padded identifier. Ids wider than
// ten digits are not padded.
func EncodeLegacy(id int64) string {
	return fmt.Sprintf("%0*d", legacyWidth, id)
}

// DecodeCurrent parses "<namespace>_<id>".
func DecodeCurrent(value string) (ID, bool) {
	idx := strings.LastIndex(value, separator)
	if idx <= 0 || idx == len(value)-1 {
		return ID{}, false
	}
	namespace, digits := value[:idx], value[idx+1:]
	if utf8.RuneCountInString(namespace) > namespaceMaxLen || !signedDigits(digits) {
		return ID{}, false
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return ID{}, false
	}
	return ID{Namespace: namespace, Value: id}, true
}

// DecodeLegacy parses a zero-padded identifier of at least ten characters.
func DecodeLegacy(value string) (ID, bool) {
	if len(value) < legacyWidth || !signedDigits(value) {
		return ID{}, false
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return ID{}, false
	}
	return ID{Value: id, Legacy: true}, true
}

// Decode accepts either encoding. A value matching neither, or matching both
// with different ids, is a MalformedId.
func Decode(value string) (ID, error) {
	value = strings.TrimSpace(value)
	current, currentOK := DecodeCurrent(value)
	legacy, legacyOK := DecodeLegacy(value)

	switch {
	case currentOK && legacyOK:
		if current.Value != legacy.Value {
			return ID{}, malformed(value, "ambiguous encoding")
		}
		return current, nil
	case currentOK:
		return current, nil
	case legacyOK:
		return legacy, nil
	default:
		return ID{}, malformed(value, "unrecognized encoding")
	}
}

func malformed(value, reason string) error {
	return pkgerrors.New(pkgerrors.CodeMalformedID, fmt.Sprintf("malformed logistics id %q: %s", value, reason)).
		WithDetails(map[string]any{"id": value})
}

func signedDigits(value string) bool {
	return allDigits(strings.TrimPrefix(value, "-"))
}

func allDigits(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
