// Package artifact persists the similarity index and its row mapping as a pair.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/patentscope/internal/db"
	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/vector"
)

// store is the consumer interface for artifacts (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo implements usecase/index.Repository.
type Repo struct {
	store      store
	indexKey   string
	mappingKey string
}

// New creates an artifact repository writing the index and mapping under the given keys.
func New(s store, indexKey, mappingKey string) *Repo {
	return &Repo{store: s, indexKey: indexKey, mappingKey: mappingKey}
}

// Save replaces both artifacts. Slot i of idx must correspond to rows[i].
func (r *Repo) Save(ctx context.Context, idx *vector.FlatL2, rows []patent.Row) error {
	if idx.Len() != len(rows) {
		return fmt.Errorf("index has %d vectors for %d rows: %w", idx.Len(), len(rows), domain.ErrIndexCorrupt)
	}

	indexData, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	mappingData, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	// Mapping first: a crash between the writes leaves a length mismatch that Load reports.
	if err := r.store.Set(ctx, r.mappingKey, mappingData); err != nil {
		return domain.NewTransportError(domain.CollaboratorStorage, fmt.Errorf("write mapping: %w", err))
	}
	if err := r.store.Set(ctx, r.indexKey, indexData); err != nil {
		return domain.NewTransportError(domain.CollaboratorStorage, fmt.Errorf("write index: %w", err))
	}
	return nil
}

// Load reads both artifacts and checks they are row-aligned.
func (r *Repo) Load(ctx context.Context) (*vector.FlatL2, []patent.Row, error) {
	indexData, err := r.get(ctx, r.indexKey)
	if err != nil {
		return nil, nil, err
	}
	mappingData, err := r.get(ctx, r.mappingKey)
	if err != nil {
		return nil, nil, err
	}

	var idx vector.FlatL2
	if err := idx.UnmarshalBinary(indexData); err != nil {
		return nil, nil, fmt.Errorf("decode index: %v: %w", err, domain.ErrIndexCorrupt)
	}
	var rows []patent.Row
	if err := json.Unmarshal(mappingData, &rows); err != nil {
		return nil, nil, fmt.Errorf("decode mapping: %v: %w", err, domain.ErrIndexCorrupt)
	}
	if idx.Len() != len(rows) {
		return nil, nil, fmt.Errorf("index has %d vectors, mapping has %d rows: %w",
			idx.Len(), len(rows), domain.ErrIndexCorrupt)
	}
	return &idx, rows, nil
}

func (r *Repo) get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", key, domain.ErrIndexNotFound)
		}
		return nil, domain.NewTransportError(domain.CollaboratorStorage, fmt.Errorf("read %s: %w", key, err))
	}
	return data, nil
}
