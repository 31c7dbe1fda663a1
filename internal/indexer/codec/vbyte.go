// Package codec implements the inverted file's integer and block encodings.
//
// Integers use a variable-byte code: seven payload bits per byte, least
// significant group first. A byte with its high bit clear means more bytes
// follow; the final byte of a number has its high bit set.
//
//	| value   | bytes               |
//	| 0       | 10000000            |
//	| 127     | 11111111            |
//	| 128     | 00000000 10000001   |
//	| 16,383  | 01111111 11111111   |
//	| 16,384  | 00000000 00000000 10000001 |
package codec

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

const (
	payloadMask = 0x7F
	stopBit     = 0x80
)

// AppendUvarint appends the variable-byte encoding of v to dst.
func AppendUvarint(dst []byte, v uint64) []byte {
	for v >= stopBit {
		dst = append(dst, byte(v&payloadMask))
		v >>= 7
	}
	return append(dst, byte(v)|stopBit)
}

// AppendUvarints appends the encoding of every value in vs to dst.
func AppendUvarints(dst []byte, vs []uint64) []byte {
	for _, v := range vs {
		dst = AppendUvarint(dst, v)
	}
	return dst
}

// EncodeUvarints returns the encoding of vs.
func EncodeUvarints(vs []uint64) []byte {
	return AppendUvarints(make([]byte, 0, len(vs)), vs)
}

// UvarintLen is the number of bytes AppendUvarint writes for v.
func UvarintLen(v uint64) int {
	n := 1
	for v >= stopBit {
		v >>= 7
		n++
	}
	return n
}

// DecodeUvarints decodes every number in data. A trailing number without its
// terminating byte is an error.
func DecodeUvarints(data []byte) ([]uint64, error) {
	out := make([]uint64, 0, len(data))
	var cur uint64
	var shift uint
	for i, b := range data {
		if shift > 63 || (shift == 63 && b&payloadMask > 1) {
			return nil, fmt.Errorf("%w: varint overflows 64 bits at byte %d", apperrors.ErrCorruptIndex, i)
		}
		cur |= uint64(b&payloadMask) << shift
		if b&stopBit != 0 {
			out = append(out, cur)
			cur = 0
			shift = 0
			continue
		}
		shift += 7
	}
	if shift != 0 {
		return nil, fmt.Errorf("%w: truncated varint at end of %d bytes", apperrors.ErrCorruptIndex, len(data))
	}
	return out, nil
}

// DecodeUvarintsN decodes exactly n numbers from the front of data and reports
// how many bytes they occupied.
func DecodeUvarintsN(data []byte, n int) ([]uint64, int, error) {
	out := make([]uint64, 0, n)
	var cur uint64
	var shift uint
	pos := 0
	for len(out) < n {
		if pos >= len(data) {
			return nil, pos, fmt.Errorf("%w: wanted %d varints, found %d", apperrors.ErrCorruptIndex, n, len(out))
		}
		b := data[pos]
		pos++
		if shift > 63 || (shift == 63 && b&payloadMask > 1) {
			return nil, pos, fmt.Errorf("%w: varint overflows 64 bits at byte %d", apperrors.ErrCorruptIndex, pos-1)
		}
		cur |= uint64(b&payloadMask) << shift
		if b&stopBit != 0 {
			out = append(out, cur)
			cur = 0
			shift = 0
			continue
		}
		shift += 7
	}
	return out, pos, nil
}
