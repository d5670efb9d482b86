package vector

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/patentscope/internal/domain"
)

func newIndex(t *testing.T, vecs ...[]float32) *FlatL2 {
	t.Helper()
	idx, err := NewFlatL2(len(vecs[0]))
	if err != nil {
		t.Fatalf("NewFlatL2: %v", err)
	}
	if err := idx.Add(vecs...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return idx
}

func TestNewFlatL2_InvalidDim(t *testing.T) {
	if _, err := NewFlatL2(0); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestFlatL2_SearchOrder(t *testing.T) {
	idx := newIndex(t,
		[]float32{0, 0},
		[]float32{3, 4},
		[]float32{1, 0},
	)

	got, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	wantSlots := []int{0, 2, 1}
	wantDist := []float32{0, 1, 25}
	for i := range wantSlots {
		if got[i].Slot != wantSlots[i] || got[i].Distance != wantDist[i] {
			t.Errorf("hit %d = %+v, want slot %d dist %v", i, got[i], wantSlots[i], wantDist[i])
		}
	}
}

func TestFlatL2_ExactMatchIsNearest(t *testing.T) {
	vecs := [][]float32{
		{0.1, 0.9, 0.3},
		{0.7, 0.2, 0.5},
		{0.4, 0.4, 0.4},
		{0.9, 0.1, 0.0},
	}
	idx := newIndex(t, vecs...)

	for i, v := range vecs {
		hits, err := idx.Search(v, 1)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if hits[0].Slot != i || hits[0].Distance != 0 {
			t.Errorf("query %d: got %+v, want slot %d at distance 0", i, hits[0], i)
		}
	}
}

func TestFlatL2_TiesKeepSlotOrder(t *testing.T) {
	idx := newIndex(t, []float32{1, 0}, []float32{-1, 0}, []float32{0, 1})
	hits, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, h := range hits {
		if h.Slot != i {
			t.Errorf("hit %d slot = %d, want %d", i, h.Slot, i)
		}
	}
}

func TestFlatL2_KLargerThanLen(t *testing.T) {
	idx := newIndex(t, []float32{1}, []float32{2})
	hits, err := idx.Search([]float32{0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("len = %d, want 2", len(hits))
	}
	seen := map[int]bool{}
	for _, h := range hits {
		if seen[h.Slot] {
			t.Errorf("duplicate slot %d", h.Slot)
		}
		seen[h.Slot] = true
	}
}

func TestFlatL2_InvalidK(t *testing.T) {
	idx := newIndex(t, []float32{1})
	if _, err := idx.Search([]float32{0}, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestFlatL2_DimMismatch(t *testing.T) {
	idx := newIndex(t, []float32{1, 2})

	if err := idx.Add([]float32{1, 2}, []float32{1}); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("Add: got %v, want ErrVectorDimMismatch", err)
	}
	if idx.Len() != 1 {
		t.Errorf("failed Add must not change the index, len = %d", idx.Len())
	}
	if _, err := idx.Search([]float32{1, 2, 3}, 1); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("Search: got %v, want ErrVectorDimMismatch", err)
	}
}

func TestFlatL2_BinaryRoundTrip(t *testing.T) {
	idx := newIndex(t, []float32{0.5, -1.25, 3}, []float32{7, 8, 9})

	data, err := idx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var got FlatL2
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got.Dim() != 3 || got.Len() != 2 {
		t.Fatalf("dim=%d len=%d, want 3/2", got.Dim(), got.Len())
	}
	hits, _ := got.Search([]float32{7, 8, 9}, 1)
	if hits[0].Slot != 1 || hits[0].Distance != 0 {
		t.Errorf("unexpected hit after round trip: %+v", hits[0])
	}
}

func TestFlatL2_UnmarshalRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("PSF")},
		{"bad magic", append([]byte("FAIS"), make([]byte, 16)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlatL2
			if err := f.UnmarshalBinary(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	idx := newIndex(t, []float32{1, 2})
	data, _ := idx.MarshalBinary()
	var f FlatL2
	if err := f.UnmarshalBinary(data[:len(data)-1]); err == nil {
		t.Error("expected error for truncated body")
	}
}
