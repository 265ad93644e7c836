package rlp

import (
	"bytes"
	"testing"
)

// FuzzDecode tests that arbitrary input does not panic and that anything
// the decoder accepts re-encodes to the identical bytes (canonical form).
func FuzzDecode(f *testing.F) {
	f.Add([]byte{0x80})
	f.Add([]byte{0xc0})
	f.Add([]byte{0x83, 'd', 'o', 'g'})
	f.Add([]byte{0xc8, 0x83, 'c', 'a', 't', 0x83, 'd', 'o', 'g'})
	f.Add([]byte{0xb8, 0x38})

	f.Fuzz(func(t *testing.T, data []byte) {
		item, err := Decode(data)
		if err != nil {
			return
		}
		if !bytes.Equal(Encode(item), data) {
			t.Errorf("accepted encoding is not canonical: %x", data)
		}
	})
}
