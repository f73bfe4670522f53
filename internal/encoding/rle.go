package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrRunLength = errors.New("encoding: decoded length mismatch")

// EncodeRuns encodes stack keys as varint (key, run_len) pairs.
func EncodeRuns(keys []uint32) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(keys) {
		k := keys[i]
		run := 1
		for j := i + 1; j < len(keys) && keys[j] == k; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(k))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}
	return buf.Bytes()
}

// DecodeRuns reverses EncodeRuns. want is the expected number of keys; a stream that
// expands to anything else is rejected before it can allocate past want.
func DecodeRuns(raw []byte, want int) ([]uint32, error) {
	out := make([]uint32, 0, want)
	for i := 0; i < len(raw); {
		k, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if k > 0xFFFFFFFF {
			return nil, fmt.Errorf("stack key too large: %d", k)
		}
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("%w: run %d at %d", ErrRunLength, run, i)
		}
		for r := uint64(0); r < run; r++ {
			out = append(out, uint32(k))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: got %d want %d", ErrRunLength, len(out), want)
	}
	return out, nil
}
