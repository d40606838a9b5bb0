//go:build gofuzz
// +build gofuzz

package wire

import (
	"fmt"
)

func Fuzz(data []byte) int {
	ev, consumed, err := Decode(data)
	if err != nil {
		return 0
	}
	if consumed == 0 {
		// Incomplete frame.
		return 0
	}
	encoded, err := Encode(ev)
	if err != nil {
		panic(fmt.Errorf("decoded event does not re-encode: %+v: %v", ev, err))
	}
	ev2, consumed2, err := Decode(encoded)
	if err != nil || consumed2 != len(encoded) {
		panic(fmt.Errorf("re-encoded frame does not decode: %+v: %v", ev, err))
	}
	if !ev.Key.Equal(ev2.Key) || ev.Type != ev2.Type {
		panic(fmt.Errorf("round trip mismatch: %+v != %+v", ev, ev2))
	}
	return 1
}
