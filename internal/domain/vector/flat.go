// Package vector implements an exact (flat) nearest-neighbour index over float32 vectors.
package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/patentscope/internal/domain"
)

var magic = [4]byte{'P', 'S', 'F', 'L'}

const (
	formatVersion = 1
	headerSize    = 4 + 4 + 4 + 8 // magic, version, dim, count
)

// Neighbor is a search hit: the slot of the stored vector and its squared L2 distance.
type Neighbor struct {
	Slot     int
	Distance float32
}

// FlatL2 stores vectors contiguously and answers k-NN queries by exhaustive squared L2 distance.
// Slot i is the i-th vector added; slots are never reordered.
type FlatL2 struct {
	dim  int
	data []float32
}

// NewFlatL2 creates an empty index of the given dimension.
func NewFlatL2(dim int) (*FlatL2, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	return &FlatL2{dim: dim}, nil
}

// Dim returns the vector dimension.
func (f *FlatL2) Dim() int { return f.dim }

// Len returns the number of stored vectors.
func (f *FlatL2) Len() int { return len(f.data) / f.dim }

// Add appends vectors in order. Either all are added or none.
func (f *FlatL2) Add(vecs ...[]float32) error {
	for i, v := range vecs {
		if len(v) != f.dim {
			return fmt.Errorf("vector %d has %d dims, index has %d: %w", i, len(v), f.dim, domain.ErrVectorDimMismatch)
		}
	}
	for _, v := range vecs {
		f.data = append(f.data, v...)
	}
	return nil
}

// Search returns up to k nearest slots in ascending distance; ties keep slot order.
// k larger than Len returns every slot.
func (f *FlatL2) Search(q []float32, k int) ([]Neighbor, error) {
	if len(q) != f.dim {
		return nil, fmt.Errorf("query has %d dims, index has %d: %w", len(q), f.dim, domain.ErrVectorDimMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}

	n := f.Len()
	all := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		all[i] = Neighbor{Slot: i, Distance: squaredL2(q, f.data[i*f.dim:(i+1)*f.dim])}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].Distance < all[b].Distance })

	if k > n {
		k = n
	}
	return all[:k], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// MarshalBinary encodes the index as a little-endian header followed by the raw vectors.
func (f *FlatL2) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+len(f.data)*4)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], formatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(f.dim))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(f.Len()))
	for i, v := range f.data {
		binary.LittleEndian.PutUint32(buf[headerSize+i*4:], math.Float32bits(v))
	}
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (f *FlatL2) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("index too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return fmt.Errorf("not a flat index file")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != formatVersion {
		return fmt.Errorf("unsupported index version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	count := binary.LittleEndian.Uint64(data[12:20])
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	body := data[headerSize:]
	if uint64(len(body)) != count*uint64(dim)*4 {
		return fmt.Errorf("index body is %d bytes, want %d vectors of %d dims", len(body), count, dim)
	}

	vals := make([]float32, len(body)/4)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	f.dim = dim
	f.data = vals
	return nil
}
