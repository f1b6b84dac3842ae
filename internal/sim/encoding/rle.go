// Package encoding holds the compact codec for grid cell rows carried in
// STATE messages. A row is the per-column cell state of one floor.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeCells encodes a row of cell states into base64(varint pairs).
// The pairs are (state, run_len) repeated. Tower floors are long runs of
// identical cells, so rows compress to a few bytes each.
func EncodeCells(cells []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cells) {
		c := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == c && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeCells(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		c, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if c > 0xFFFF {
			return nil, fmt.Errorf("cell state too large: %d", c)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, uint16(c))
		}
	}
	return out, nil
}
