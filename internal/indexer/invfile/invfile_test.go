package invfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

func build(t *testing.T, postings []index.Posting, blockSize int) ([]byte, *lexicon.Lexicon) {
	t.Helper()
	var buf bytes.Buffer
	b := NewBuilder(&buf, blockSize)
	for _, p := range postings {
		if err := b.Add(p); err != nil {
			t.Fatalf("Add(%v): %v", p, err)
		}
	}
	lex, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if b.Written() != int64(buf.Len()) {
		t.Fatalf("Written() = %d, buffer holds %d", b.Written(), buf.Len())
	}
	return buf.Bytes(), lex
}

func TestBuilderCatDog(t *testing.T) {
	data, lex := build(t, []index.Posting{
		{Term: "cat", DocID: 1, Frequency: 2},
		{Term: "dog", DocID: 1, Frequency: 1},
		{Term: "dog", DocID: 2, Frequency: 2},
	}, 64)

	want := []byte{
		0x82, 0x81, 0x81, 0x82, // cat: size 2, last 1, docID 1, freq 2
		0x84, 0x82, 0x81, 0x81, 0x81, 0x82, // dog: size 4, last 2, deltas 1 1, freqs 1 2
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("inverted file = % x, want % x", data, want)
	}
	entries := lex.Entries()
	wantEntries := []lexicon.Entry{
		{Term: "cat", Start: 0, End: 3, DocFreq: 1},
		{Term: "dog", Start: 4, End: 9, DocFreq: 2},
	}
	if len(entries) != len(wantEntries) {
		t.Fatalf("got %d entries", len(entries))
	}
	for i := range entries {
		if entries[i] != wantEntries[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], wantEntries[i])
		}
	}
}

func TestBuilderDocumentFrequencyIsPostingCount(t *testing.T) {
	var postings []index.Posting
	for i, term := range []string{"a", "b", "c", "d"} {
		df := []int{1, 64, 65, 200}[i]
		for d := 1; d <= df; d++ {
			postings = append(postings, index.Posting{Term: term, DocID: uint32(d * 3), Frequency: uint32(d%5 + 1)})
		}
	}
	data, lex := build(t, postings, 64)

	wantDF := map[string]int64{"a": 1, "b": 64, "c": 65, "d": 200}
	var prevEnd int64 = -1
	for _, e := range lex.Entries() {
		if e.DocFreq != wantDF[e.Term] {
			t.Errorf("%s: docFreq %d, want %d", e.Term, e.DocFreq, wantDF[e.Term])
		}
		if e.Start != prevEnd+1 {
			t.Errorf("%s: start %d does not follow end %d", e.Term, e.Start, prevEnd)
		}
		prevEnd = e.End
	}
	if prevEnd != int64(len(data))-1 {
		t.Errorf("last entry ends at %d, file has %d bytes", prevEnd, len(data))
	}
	if lex.Postings() != 330 {
		t.Errorf("Postings() = %d", lex.Postings())
	}
}

func post(term string, docID uint32) index.Posting {
	return index.Posting{Term: term, DocID: docID, Frequency: 1}
}

func TestBuilderRejectsOutOfOrder(t *testing.T) {
	tests := []struct {
		name     string
		postings []index.Posting
	}{
		{"repeated doc", []index.Posting{post("a", 1), post("a", 1)}},
		{"descending doc", []index.Posting{post("a", 5), post("a", 2)}},
		{"term goes back", []index.Posting{post("b", 1), post("a", 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(&bytes.Buffer{}, 64)
			var err error
			for _, posting := range tt.postings {
				if err = b.Add(posting); err != nil {
					break
				}
			}
			if !errors.Is(err, apperrors.ErrUnorderedStream) {
				t.Errorf("expected ErrUnorderedStream, got %v", err)
			}
		})
	}
}

func TestBuilderEmptyStreamAndDone(t *testing.T) {
	var buf bytes.Buffer
	b := NewBuilder(&buf, 64)
	lex, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if lex.Len() != 0 || buf.Len() != 0 {
		t.Errorf("empty stream produced output")
	}
	if err := b.Add(index.Posting{Term: "a", DocID: 1, Frequency: 1}); !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("Add after Finish = %v", err)
	}
}

func writeMerged(t *testing.T, dir string, postings []index.Posting) string {
	t.Helper()
	var rec []byte
	for _, p := range postings {
		rec = index.AppendRecord(rec, p)
	}
	path := filepath.Join(dir, "merged")
	if err := os.WriteFile(path, rec, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildFileAndReader(t *testing.T) {
	dir := t.TempDir()
	var postings []index.Posting
	for i, term := range []string{"$10", "%5", "apple", "zebra"} {
		for d := 1; d <= 70*(i+1); d++ {
			postings = append(postings, index.Posting{Term: term, DocID: uint32(d*(i+1) + 1000), Frequency: uint32(d%7 + 1)})
		}
	}
	merged := writeMerged(t, dir, postings)
	out := filepath.Join(dir, "inverted.bin")

	res, err := BuildFile(context.Background(), merged, out, 64)
	if err != nil {
		t.Fatal(err)
	}
	if res.Terms != 4 || res.Postings != int64(len(postings)) {
		t.Fatalf("result = %+v", res)
	}
	// 70, 140, 210, 280 postings -> 2 + 3 + 4 + 5 blocks
	if res.Blocks != 14 {
		t.Errorf("Blocks = %d, want 14", res.Blocks)
	}

	r, err := OpenReader(out, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Size() != res.Bytes {
		t.Errorf("file size %d, builder wrote %d", r.Size(), res.Bytes)
	}
	pos := 0
	for _, e := range res.Lexicon.Entries() {
		list, err := r.ReadList(e)
		if err != nil {
			t.Fatalf("ReadList(%s): %v", e.Term, err)
		}
		for i := range list.DocIDs {
			want := postings[pos]
			if want.Term != e.Term || list.DocIDs[i] != uint64(want.DocID) || list.Freqs[i] != uint64(want.Frequency) {
				t.Fatalf("%s[%d] = (%d, %d), want %v", e.Term, i, list.DocIDs[i], list.Freqs[i], want)
			}
			pos++
		}
	}
	if pos != len(postings) {
		t.Errorf("decoded %d postings, want %d", pos, len(postings))
	}
}

func TestBuildFileIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	var postings []index.Posting
	for d := 1; d <= 150; d++ {
		postings = append(postings, index.Posting{Term: fmt.Sprintf("t%03d", d%9), DocID: uint32(d), Frequency: 1})
	}
	// regroup into merged order
	var merged []index.Posting
	for term := 0; term < 9; term++ {
		for _, p := range postings {
			if p.Term == fmt.Sprintf("t%03d", term) {
				merged = append(merged, p)
			}
		}
	}
	path := writeMerged(t, dir, merged)

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		out := filepath.Join(dir, fmt.Sprintf("inverted-%d.bin", i))
		if _, err := BuildFile(context.Background(), path, out, 64); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("two builds from the same stream differ")
	}
}

func TestReaderRejectsRangeOutsideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inverted.bin")
	if err := os.WriteFile(path, []byte{0x82, 0x81, 0x81, 0x82}, 0644); err != nil {
		t.Fatal(err)
	}
	r, err := OpenReader(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := r.ReadList(lexicon.Entry{Term: "x", Start: 2, End: 9, DocFreq: 1}); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("expected ErrCorruptIndex, got %v", err)
	}
	list, err := r.ReadList(lexicon.Entry{Term: "cat", Start: 0, End: 3, DocFreq: 1})
	if err != nil {
		t.Fatal(err)
	}
	if list.DocIDs[0] != 1 || list.Freqs[0] != 2 {
		t.Errorf("decoded %+v", list)
	}
}

func BenchmarkBuilder(b *testing.B) {
	postings := make([]index.Posting, 0, 100000)
	for term := 0; term < 100; term++ {
		for d := 1; d <= 1000; d++ {
			postings = append(postings, index.Posting{Term: fmt.Sprintf("term%03d", term), DocID: uint32(d * 7), Frequency: uint32(d%4 + 1)})
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		builder := NewBuilder(&buf, 64)
		for _, p := range postings {
			if err := builder.Add(p); err != nil {
				b.Fatal(err)
			}
		}
		if _, err := builder.Finish(); err != nil {
			b.Fatal(err)
		}
	}
}
