// Package varenc encodes application-supplied values for storage in the
// supervisor's shared app-var map. Every value is tagged with its kind so
// that decoding never has to guess a payload's shape from its bytes.
package varenc

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Kind discriminates how a stored value's payload should be decoded.
type Kind byte

const (
	// KindString marks a payload that is a raw UTF-8 string.
	KindString Kind = iota + 1
	// KindBytes marks a payload that is an opaque byte string, stored verbatim.
	KindBytes
	// KindJSON marks a payload that is a JSON encoding of an arbitrary value.
	KindJSON
)

// ErrEmpty is returned by Decode when given a zero-length envelope.
var ErrEmpty = errors.New("varenc: empty envelope")

// Encode wraps v in a kind-tagged envelope suitable for storage in the app-var
// map. string and []byte are stored verbatim; anything else is JSON-encoded.
func Encode(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return append([]byte{byte(KindString)}, val...), nil
	case []byte:
		return append([]byte{byte(KindBytes)}, val...), nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, errors.Wrap(err, "varenc: marshal JSON payload")
		}
		return append([]byte{byte(KindJSON)}, data...), nil
	}
}

// Decode reverses Encode, returning a string, []byte, or a
// json.Unmarshal-populated interface{}, depending on the stored kind.
func Decode(envelope []byte) (interface{}, error) {
	if len(envelope) == 0 {
		return nil, ErrEmpty
	}

	kind := Kind(envelope[0])
	payload := envelope[1:]

	switch kind {
	case KindString:
		return string(payload), nil
	case KindBytes:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case KindJSON:
		var v interface{}
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, errors.Wrap(err, "varenc: unmarshal JSON payload")
		}
		return v, nil
	default:
		return nil, errors.Errorf("varenc: unknown kind tag %d", kind)
	}
}
