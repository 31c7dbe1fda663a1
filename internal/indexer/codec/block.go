package codec

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

// DefaultBlockSize is the number of postings compressed together.
const DefaultBlockSize = 64

/*
Inverted list layout for one term:

	┌──────────────────┬──────────────────┬─────────┬─────────┬─────┐
	│ blockByteSize[]  │ lastDocID[]      │ block 0 │ block 1 │ ... │
	└──────────────────┴──────────────────┴─────────┴─────────┴─────┘

Each block is its docID deltas followed by its raw frequencies. The first
docID of the first block is absolute; the first docID of every later block is
the gap from the previous block's last docID.
*/

// BlockMeta describes one compressed block.
type BlockMeta struct {
	ByteSize  uint64
	LastDocID uint64
	Postings  int
}

// NumBlocks is the number of blocks a list of docFreq postings occupies.
func NumBlocks(docFreq, blockSize int) int {
	return (docFreq + blockSize - 1) / blockSize
}

// ListEncoder compresses the postings of one term at a time. Its buffers are
// reused across terms.
type ListEncoder struct {
	blockSize int
	sizes     []uint64
	lastIDs   []uint64
	deltas    []uint64
	freqs     []uint64
	payload   []byte
	out       []byte
}

func NewListEncoder(blockSize int) *ListEncoder {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &ListEncoder{
		blockSize: blockSize,
		deltas:    make([]uint64, 0, blockSize),
		freqs:     make([]uint64, 0, blockSize),
	}
}

func (e *ListEncoder) BlockSize() int {
	return e.blockSize
}

// Encode returns the full layout for one term. docIDs must be strictly
// increasing. The returned slice is only valid until the next call.
func (e *ListEncoder) Encode(docIDs, freqs []uint32) ([]byte, error) {
	if len(docIDs) != len(freqs) {
		return nil, fmt.Errorf("%w: %d doc ids but %d frequencies", apperrors.ErrInternal, len(docIDs), len(freqs))
	}
	if len(docIDs) == 0 {
		return nil, fmt.Errorf("%w: empty posting list", apperrors.ErrInternal)
	}
	e.sizes = e.sizes[:0]
	e.lastIDs = e.lastIDs[:0]
	e.payload = e.payload[:0]

	var prev uint32
	for start := 0; start < len(docIDs); start += e.blockSize {
		end := min(start+e.blockSize, len(docIDs))
		e.deltas = e.deltas[:0]
		e.freqs = e.freqs[:0]
		for i := start; i < end; i++ {
			id := docIDs[i]
			if i > 0 && id <= prev {
				return nil, fmt.Errorf("%w: doc id %d follows %d", apperrors.ErrUnorderedStream, id, prev)
			}
			if i == 0 {
				e.deltas = append(e.deltas, uint64(id))
			} else {
				e.deltas = append(e.deltas, uint64(id-prev))
			}
			e.freqs = append(e.freqs, uint64(freqs[i]))
			prev = id
		}
		before := len(e.payload)
		e.payload = AppendUvarints(e.payload, e.deltas)
		e.payload = AppendUvarints(e.payload, e.freqs)
		e.sizes = append(e.sizes, uint64(len(e.payload)-before))
		e.lastIDs = append(e.lastIDs, uint64(docIDs[end-1]))
	}

	e.out = e.out[:0]
	e.out = AppendUvarints(e.out, e.sizes)
	e.out = AppendUvarints(e.out, e.lastIDs)
	e.out = append(e.out, e.payload...)
	return e.out, nil
}

// DecodedList is a term's postings recovered from its inverted list bytes.
type DecodedList struct {
	DocIDs []uint64
	Freqs  []uint64
	Blocks []BlockMeta
}

// DecodeList inverts ListEncoder.Encode. docFreq comes from the lexicon and
// determines the block count; data must be exactly the term's byte range.
func DecodeList(data []byte, docFreq, blockSize int) (*DecodedList, error) {
	if docFreq <= 0 {
		return nil, fmt.Errorf("%w: document frequency %d", apperrors.ErrCorruptIndex, docFreq)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	numBlocks := NumBlocks(docFreq, blockSize)

	sizes, n, err := DecodeUvarintsN(data, numBlocks)
	if err != nil {
		return nil, fmt.Errorf("decoding block sizes: %w", err)
	}
	pos := n
	lastIDs, n, err := DecodeUvarintsN(data[pos:], numBlocks)
	if err != nil {
		return nil, fmt.Errorf("decoding last doc ids: %w", err)
	}
	pos += n

	list := &DecodedList{
		DocIDs: make([]uint64, 0, docFreq),
		Freqs:  make([]uint64, 0, docFreq),
		Blocks: make([]BlockMeta, 0, numBlocks),
	}
	var prev uint64
	for b := 0; b < numBlocks; b++ {
		count := min(blockSize, docFreq-b*blockSize)
		if uint64(len(data)-pos) < sizes[b] {
			return nil, fmt.Errorf("%w: block %d needs %d bytes, %d left", apperrors.ErrCorruptIndex, b, sizes[b], len(data)-pos)
		}
		block := data[pos : pos+int(sizes[b])]
		deltas, used, err := DecodeUvarintsN(block, count)
		if err != nil {
			return nil, fmt.Errorf("decoding block %d doc ids: %w", b, err)
		}
		freqs, fused, err := DecodeUvarintsN(block[used:], count)
		if err != nil {
			return nil, fmt.Errorf("decoding block %d frequencies: %w", b, err)
		}
		if used+fused != len(block) {
			return nil, fmt.Errorf("%w: block %d has %d unread bytes", apperrors.ErrCorruptIndex, b, len(block)-used-fused)
		}
		for i, d := range deltas {
			id := d
			if b > 0 || i > 0 {
				if d == 0 {
					return nil, fmt.Errorf("%w: repeated doc id %d in block %d", apperrors.ErrCorruptIndex, prev, b)
				}
				id = prev + d
			}
			list.DocIDs = append(list.DocIDs, id)
			prev = id
		}
		if prev != lastIDs[b] {
			return nil, fmt.Errorf("%w: block %d ends at doc %d, metadata says %d", apperrors.ErrCorruptIndex, b, prev, lastIDs[b])
		}
		list.Freqs = append(list.Freqs, freqs...)
		list.Blocks = append(list.Blocks, BlockMeta{
			ByteSize:  sizes[b],
			LastDocID: lastIDs[b],
			Postings:  count,
		})
		pos += int(sizes[b])
	}
	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d blocks", apperrors.ErrCorruptIndex, len(data)-pos, numBlocks)
	}
	return list, nil
}
