package varenc

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
	}{
		{"string", "hello world"},
		{"bytes", []byte{1, 2, 3, 0, 255}},
		{"struct", map[string]interface{}{"a": float64(1), "b": "two"}},
		{"number", float64(42)},
		{"bool", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			envelope, err := Encode(c.in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			got, err := Decode(envelope)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if !reflect.DeepEqual(got, c.in) {
				t.Errorf("round trip mismatch: got %#v, want %#v", got, c.in)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, err := Decode(nil); err != ErrEmpty {
		t.Errorf("Decode(nil) error = %v, want ErrEmpty", err)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	if _, err := Decode([]byte{0xFF, 'x'}); err == nil {
		t.Error("Decode with unknown kind: expected error, got nil")
	}
}
