package lexicon

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

func TestRecordOffsets(t *testing.T) {
	lex := New()
	steps := []struct {
		term    string
		total   int64
		docFreq int
		want    Entry
	}{
		{"cat", 4, 1, Entry{"cat", 0, 3, 1}},
		{"dog", 10, 2, Entry{"dog", 4, 9, 2}},
		{"emu", 11, 1, Entry{"emu", 10, 10, 1}},
	}
	for _, s := range steps {
		got, err := lex.Record(s.term, s.total, s.docFreq)
		if err != nil {
			t.Fatalf("Record(%s): %v", s.term, err)
		}
		if got != s.want {
			t.Errorf("Record(%s) = %+v, want %+v", s.term, got, s.want)
		}
	}
	entries := lex.Entries()
	for i := 1; i < len(entries); i++ {
		if entries[i].Start != entries[i-1].End+1 {
			t.Errorf("entry %d starts at %d, previous ends at %d", i, entries[i].Start, entries[i-1].End)
		}
	}
	if lex.Postings() != 4 {
		t.Errorf("Postings = %d, want 4", lex.Postings())
	}
}

func TestRecordRejects(t *testing.T) {
	lex := New()
	if _, err := lex.Record("", 3, 1); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty term: %v", err)
	}
	if _, err := lex.Record(strings.Repeat("x", MaxTermLen+1), 3, 1); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("long term: %v", err)
	}
	if _, err := lex.Record("cat", 3, 0); err == nil {
		t.Error("expected error for zero document frequency")
	}
	if _, err := lex.Record("cat", 3, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := lex.Record("dog", 3, 1); err == nil {
		t.Error("expected error when no bytes were written for a term")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	lex := New()
	lex.Record("cat", 4, 1)
	lex.Record("$100", 300, 70)
	lex.Record("zebra", 1<<40, 3)

	var buf bytes.Buffer
	n, err := lex.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo reported %d bytes, wrote %d", n, buf.Len())
	}
	// "cat" record: 2 + 3 + 24
	if buf.Len() != 29+30+31 {
		t.Errorf("lexicon size = %d, want %d", buf.Len(), 29+30+31)
	}
	if got := buf.Bytes()[:5]; !bytes.Equal(got, []byte{0, 3, 'c', 'a', 't'}) {
		t.Errorf("first record prefix = % x", got)
	}

	entries, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := lex.Entries()
	if len(entries) != len(want) {
		t.Fatalf("read %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestReadTruncated(t *testing.T) {
	lex := New()
	lex.Record("cat", 4, 1)
	var buf bytes.Buffer
	if _, err := lex.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	for _, cut := range []int{1, 4, len(data) - 1} {
		if _, err := Read(bytes.NewReader(data[:cut])); !errors.Is(err, apperrors.ErrCorruptIndex) {
			t.Errorf("cut at %d: got %v, want ErrCorruptIndex", cut, err)
		}
	}
}

func TestFind(t *testing.T) {
	lex := New()
	lex.Record("cat", 4, 1)
	lex.Record("dog", 10, 2)
	path := filepath.Join(t.TempDir(), "lexicon")
	if _, err := lex.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	e, ok, err := Find(path, "dog")
	if err != nil || !ok {
		t.Fatalf("Find(dog) = %v, %v", ok, err)
	}
	if e.Start != 4 || e.End != 9 || e.DocFreq != 2 {
		t.Errorf("Find(dog) = %+v", e)
	}
	if _, ok, _ := Find(path, "emu"); ok {
		t.Error("Find(emu) reported a match")
	}
}
