package codec

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

func TestUvarintBitLayout(t *testing.T) {
	tests := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x80}},
		{1, []byte{0x81}},
		{127, []byte{0xFF}},
		{128, []byte{0x00, 0x81}},
		{300, []byte{0x2C, 0x82}},
		{16383, []byte{0x7F, 0xFF}},
		{16384, []byte{0x00, 0x00, 0x81}},
	}
	for _, tt := range tests {
		got := AppendUvarint(nil, tt.v)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("AppendUvarint(%d) = %08b, want %08b", tt.v, got, tt.want)
		}
		if UvarintLen(tt.v) != len(tt.want) {
			t.Errorf("UvarintLen(%d) = %d, want %d", tt.v, UvarintLen(tt.v), len(tt.want))
		}
	}
}

func TestUvarintRoundTripSingle(t *testing.T) {
	check := func(n uint64) {
		got, err := DecodeUvarints(AppendUvarint(nil, n))
		if err != nil {
			t.Fatalf("decode %d: %v", n, err)
		}
		if len(got) != 1 || got[0] != n {
			t.Fatalf("round trip of %d gave %v", n, got)
		}
	}
	for n := uint64(0); n < 1<<16; n++ {
		check(n)
	}
	for shift := uint(16); shift < 64; shift++ {
		check(1<<shift - 1)
		check(1 << shift)
		check(1<<shift + 1)
	}
	check(math.MaxUint64)
}

func TestUvarintRoundTripSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		seq := make([]uint64, rng.Intn(300))
		for i := range seq {
			seq[i] = rng.Uint64() >> uint(rng.Intn(64))
		}
		enc := EncodeUvarints(seq)
		got, err := DecodeUvarints(enc)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if len(got) != len(seq) {
			t.Fatalf("trial %d: decoded %d values, want %d", trial, len(got), len(seq))
		}
		for i := range seq {
			if got[i] != seq[i] {
				t.Fatalf("trial %d: value %d = %d, want %d", trial, i, got[i], seq[i])
			}
		}
	}
}

func TestDecodeUvarintsTruncated(t *testing.T) {
	enc := AppendUvarint(nil, 1<<20)
	if _, err := DecodeUvarints(enc[:len(enc)-1]); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("expected ErrCorruptIndex, got %v", err)
	}
}

func TestDecodeUvarintsOverflow(t *testing.T) {
	data := bytes.Repeat([]byte{0x7F}, 10)
	data = append(data, 0x81)
	if _, err := DecodeUvarints(data); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("expected overflow error, got %v", err)
	}
}

func TestDecodeUvarintsN(t *testing.T) {
	enc := EncodeUvarints([]uint64{5, 500, 50000, 9})
	got, n, err := DecodeUvarintsN(enc, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2] != 50000 {
		t.Errorf("got %v", got)
	}
	if n != len(enc)-1 {
		t.Errorf("consumed %d bytes, want %d", n, len(enc)-1)
	}
	if _, _, err := DecodeUvarintsN(enc, 5); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("expected short-input error, got %v", err)
	}
}

func BenchmarkAppendUvarints(b *testing.B) {
	vs := make([]uint64, 64)
	for i := range vs {
		vs[i] = uint64(i * 977)
	}
	buf := make([]byte, 0, 256)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = AppendUvarints(buf[:0], vs)
	}
}
