// Package manifest records a completed build. The manifest is the last file
// written; an output directory without one, or whose artifacts no longer
// match their recorded sizes and checksums, holds an incomplete build.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

const (
	FileName      = "manifest.json"
	InvertedFile  = "inverted.bin"
	LexiconFile   = "lexicon.bin"
	PageTableFile = "pagetable.bin"
	FormatVersion = 1
)

// Artifact is one output file and its content hash.
type Artifact struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	XXHash64 string `json:"xxhash64"`
}

// Manifest describes one build of the index.
type Manifest struct {
	Version   int        `json:"version"`
	BuildID   string     `json:"build_id"`
	CreatedAt time.Time  `json:"created_at"`
	Documents int        `json:"documents"`
	Terms     int        `json:"terms"`
	Postings  int64      `json:"postings"`
	Blocks    int64      `json:"blocks"`
	BlockSize int        `json:"block_size"`
	Artifacts []Artifact `json:"artifacts"`
}

// Artifact returns the named artifact.
func (m *Manifest) Artifact(name string) (Artifact, bool) {
	for _, a := range m.Artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return Artifact{}, false
}

// Checksum hashes the file dir/name.
func Checksum(dir, name string) (Artifact, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return Artifact{}, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()
	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Artifact{}, fmt.Errorf("hashing %s: %w", name, err)
	}
	return Artifact{
		Name:     name,
		Size:     n,
		XXHash64: formatSum(h.Sum64()),
	}, nil
}

func formatSum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// Write atomically stores m in dir.
func Write(dir string, m *Manifest) error {
	if m.Version == 0 {
		m.Version = FormatVersion
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	finalPath := filepath.Join(dir, FileName)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing manifest: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// Read loads the manifest in dir. A missing manifest is ErrIncompleteBuild.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no %s in %s", apperrors.ErrIncompleteBuild, FileName, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %v", apperrors.ErrCorruptIndex, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: manifest version %d", apperrors.ErrCorruptIndex, m.Version)
	}
	return &m, nil
}

// Remove deletes the manifest in dir, marking whatever is there as
// incomplete until a new manifest is written.
func Remove(dir string) error {
	err := os.Remove(filepath.Join(dir, FileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale manifest: %w", err)
	}
	return nil
}

// CheckArtifacts rehashes every artifact listed in m.
func CheckArtifacts(dir string, m *Manifest) error {
	for _, want := range m.Artifacts {
		got, err := Checksum(dir, want.Name)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s is missing", apperrors.ErrIncompleteBuild, want.Name)
		}
		if err != nil {
			return err
		}
		if got.Size != want.Size {
			return fmt.Errorf("%w: %s is %d bytes, manifest records %d",
				apperrors.ErrIncompleteBuild, want.Name, got.Size, want.Size)
		}
		if got.XXHash64 != want.XXHash64 {
			return fmt.Errorf("%w: %s checksum %s, manifest records %s",
				apperrors.ErrIncompleteBuild, want.Name, got.XXHash64, want.XXHash64)
		}
	}
	return nil
}
