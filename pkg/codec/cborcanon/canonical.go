// Package cborcanon provides canonical CBOR encoding helpers used for
// wire types that must round-trip byte-exactly: deterministic map key
// order and no floating-point surprises.
package cborcanon

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CanonicalMode is a CBOR encoding mode with deterministic key order
// and no indefinite-length items, so two encoders given the same
// value always produce the same bytes.
var CanonicalMode cbor.EncMode

func init() {
	var err error
	CanonicalMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create canonical CBOR mode: %v", err))
	}
}

// Marshal encodes v into canonical CBOR form.
func Marshal(v interface{}) ([]byte, error) {
	return CanonicalMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
