// Package offchain implements the read-only lookup of the descriptive
// metadata of an election, such as its banner and its long description.
//
// The metadata is only displayed. It is never used to validate or marshal an
// election.
//
// Documentation Last Review: 15.10.2026
//
package offchain

import (
	"context"
	"math/big"
	"sync"

	"go.dedis.ch/ballot/core/store/kv"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

var bucketName = []byte("offchain")

// ErrNotFound is returned when an election has no metadata.
var ErrNotFound = xerrors.New("metadata not found")

// Metadata is the descriptive information of an election.
type Metadata struct {
	ElectionID  string `yaml:"election"`
	Banner      string `yaml:"banner,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Store is the interface to look up the metadata of an election.
type Store interface {
	Lookup(ctx context.Context, electionID *big.Int) (Metadata, error)
}

// MemStore is an in-memory store.
//
// - implements offchain.Store
type MemStore struct {
	sync.RWMutex
	entries map[string]Metadata
}

// NewMemStore returns a store populated with the metadata.
func NewMemStore(entries ...Metadata) *MemStore {
	s := &MemStore{
		entries: make(map[string]Metadata, len(entries)),
	}

	for _, e := range entries {
		s.entries[e.ElectionID] = e
	}

	return s
}

// Lookup implements offchain.Store.
func (s *MemStore) Lookup(ctx context.Context, electionID *big.Int) (Metadata, error) {
	if electionID == nil {
		return Metadata{}, xerrors.New("missing election identifier")
	}

	s.RLock()
	defer s.RUnlock()

	m, found := s.entries[electionID.String()]
	if !found {
		return Metadata{}, xerrors.Errorf("election %v: %w", electionID, ErrNotFound)
	}

	return m, nil
}

// DiskStore is a store persisted in a key/value database. The entries are
// encoded in YAML and indexed by the decimal election identifier.
//
// - implements offchain.Store
type DiskStore struct {
	db kv.DB
}

// NewDiskStore returns a store backed by the database.
func NewDiskStore(db kv.DB) DiskStore {
	return DiskStore{db: db}
}

// Lookup implements offchain.Store.
func (s DiskStore) Lookup(ctx context.Context, electionID *big.Int) (Metadata, error) {
	if electionID == nil {
		return Metadata{}, xerrors.New("missing election identifier")
	}

	var data []byte

	err := s.db.View(bucketName, func(b kv.Bucket) error {
		data = b.Get([]byte(electionID.String()))
		return nil
	})

	// An empty database has no bucket yet.
	if err != nil || data == nil {
		return Metadata{}, xerrors.Errorf("election %v: %w", electionID, ErrNotFound)
	}

	var m Metadata

	err = yaml.Unmarshal(data, &m)
	if err != nil {
		return Metadata{}, xerrors.Errorf("failed to decode metadata: %v", err)
	}

	return m, nil
}

// Import stores the entries, replacing the existing ones. It is used to seed a
// development database.
func (s DiskStore) Import(entries []Metadata) error {
	return s.db.Update(bucketName, func(b kv.Bucket) error {
		for _, e := range entries {
			id, ok := new(big.Int).SetString(e.ElectionID, 10)
			if !ok || id.Sign() < 0 {
				return xerrors.Errorf("invalid election identifier '%s'", e.ElectionID)
			}

			e.ElectionID = id.String()

			data, err := yaml.Marshal(e)
			if err != nil {
				return xerrors.Errorf("failed to encode metadata: %v", err)
			}

			err = b.Set([]byte(e.ElectionID), data)
			if err != nil {
				return xerrors.Errorf("failed to write: %v", err)
			}
		}

		return nil
	})
}

// LoadYAML decodes a list of metadata.
func LoadYAML(data []byte) ([]Metadata, error) {
	var entries []Metadata

	err := yaml.UnmarshalStrict(data, &entries)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode metadata: %v", err)
	}

	return entries, nil
}
