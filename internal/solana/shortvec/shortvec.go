// Package shortvec implements the compact length prefix used in transaction
// wire encoding.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// EncodeLen writes n as a shortvec to w.
func EncodeLen(w io.Writer, n int) (int, error) {
	if n < 0 || n > math.MaxUint16 {
		return 0, errors.Errorf("length %d out of range", n)
	}

	written := 0
	buf := []byte{0}
	for {
		buf[0] = byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			buf[0] |= 0x80
		}
		m, err := w.Write(buf)
		written += m
		if err != nil || n == 0 {
			return written, err
		}
	}
}

// DecodeLen reads a shortvec length from r.
func DecodeLen(r io.Reader) (int, error) {
	var val int
	buf := []byte{0}
	for size := 0; ; size++ {
		if size == 3 {
			return 0, errors.New("shortvec longer than 3 bytes")
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}

		val |= int(buf[0]&0x7f) << (size * 7)
		if buf[0]&0x80 == 0 {
			break
		}
	}
	if val > math.MaxUint16 {
		return 0, errors.Errorf("length %d out of range", val)
	}
	return val, nil
}
