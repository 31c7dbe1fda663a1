package manifest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/invfile"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/lexicon"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/pagetable"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

// writeIndex lays down a complete three-document index in dir.
func writeIndex(t *testing.T, dir string) *Manifest {
	t.Helper()
	var inv bytes.Buffer
	b := invfile.NewBuilder(&inv, 64)
	for _, p := range []index.Posting{
		{Term: "apple", DocID: 1, Frequency: 3},
		{Term: "apple", DocID: 3, Frequency: 1},
		{Term: "pear", DocID: 2, Frequency: 2},
	} {
		if err := b.Add(p); err != nil {
			t.Fatal(err)
		}
	}
	lex, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, InvertedFile), inv.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := lex.WriteFile(filepath.Join(dir, LexiconFile)); err != nil {
		t.Fatal(err)
	}
	pw, err := pagetable.Create(filepath.Join(dir, PageTableFile))
	if err != nil {
		t.Fatal(err)
	}
	for id := uint32(1); id <= 3; id++ {
		if err := pw.Add(pagetable.Record{DocID: id, URL: "u", Size: 10}); err != nil {
			t.Fatal(err)
		}
	}
	if err := pw.Close(); err != nil {
		t.Fatal(err)
	}

	m := &Manifest{
		BuildID:   "test-build",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Documents: 3,
		Terms:     lex.Len(),
		Postings:  lex.Postings(),
		Blocks:    b.Blocks(),
		BlockSize: 64,
	}
	for _, name := range []string{InvertedFile, LexiconFile, PageTableFile} {
		a, err := Checksum(dir, name)
		if err != nil {
			t.Fatal(err)
		}
		m.Artifacts = append(m.Artifacts, a)
	}
	if err := Write(dir, m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := writeIndex(t, dir)
	got, err := Read(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuildID != want.BuildID || got.Postings != 3 || len(got.Artifacts) != 3 || got.Version != FormatVersion {
		t.Errorf("Read = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName+".tmp")); !os.IsNotExist(err) {
		t.Error("temp manifest left behind")
	}
}

func TestVerifyCompleteIndex(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir)
	report, err := Verify(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if report.Terms != 2 || report.Postings != 3 || report.Documents != 3 || report.Blocks != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestVerifyMissingManifest(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir)
	if err := Remove(dir); err != nil {
		t.Fatal(err)
	}
	if err := Remove(dir); err != nil {
		t.Errorf("second Remove: %v", err)
	}
	if _, err := Verify(context.Background(), dir); !errors.Is(err, apperrors.ErrIncompleteBuild) {
		t.Errorf("expected ErrIncompleteBuild, got %v", err)
	}
}

func TestVerifyDetectsModifiedArtifact(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir)
	path := filepath.Join(dir, InvertedFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[0] ^= 0x01
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(context.Background(), dir); !errors.Is(err, apperrors.ErrIncompleteBuild) {
		t.Errorf("expected ErrIncompleteBuild, got %v", err)
	}
}

func TestVerifyDetectsBadLexiconRange(t *testing.T) {
	dir := t.TempDir()
	m := writeIndex(t, dir)

	// shift the second entry's start so the entries are no longer contiguous
	entries, err := lexicon.ReadFile(filepath.Join(dir, LexiconFile))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	for i, e := range entries {
		if i == 1 {
			e.Start++
		}
		var head [2]byte
		binary.BigEndian.PutUint16(head[:], uint16(len(e.Term)))
		buf.Write(head[:])
		buf.WriteString(e.Term)
		var nums [24]byte
		binary.BigEndian.PutUint64(nums[0:8], uint64(e.Start))
		binary.BigEndian.PutUint64(nums[8:16], uint64(e.End))
		binary.BigEndian.PutUint64(nums[16:24], uint64(e.DocFreq))
		buf.Write(nums[:])
	}
	if err := os.WriteFile(filepath.Join(dir, LexiconFile), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	// re-record checksums so only the structural check can catch it
	m.Artifacts = m.Artifacts[:0]
	for _, name := range []string{InvertedFile, LexiconFile, PageTableFile} {
		a, err := Checksum(dir, name)
		if err != nil {
			t.Fatal(err)
		}
		m.Artifacts = append(m.Artifacts, a)
	}
	if err := Write(dir, m); err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(context.Background(), dir); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("expected ErrCorruptIndex, got %v", err)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(dir); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("expected ErrCorruptIndex, got %v", err)
	}
}
