// Package storage keeps the little local state of the client in a prefixed
// key-value store. Nothing here is authoritative: the contract owns every
// record and this data is reconciled against it before being trusted. The
// following prefixes are used:
//   - 'vr/' for the advisory vote records of each (voter, campaign) pair
//   - 'pw/' for the writes submitted by this client and not resolved yet
//   - 'c/' for the ids of the campaigns seen by the event monitor
//   - 'm/' for metadata, such as the last block seen by the event monitor
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fundshadow/fundshadow-client/log"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// Prefixes for the keys in the database.
	voteRecordPrefix   = []byte("vr/")
	pendingWritePrefix = []byte("pw/")
	campaignPrefix     = []byte("c/")
	metadataPrefix     = []byte("m/")

	lastBlockKey = []byte("lastBlock")
)

// ErrNotFound is returned when the requested artifact is not stored.
var ErrNotFound = errors.New("not found")

// Storage wraps the database with the typed artifacts of the client.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "err", err)
	}
}

// setArtifact encodes and stores the artifact under prefix/key.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	val, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, val); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// getArtifact decodes the artifact stored under prefix/key into out. It
// returns ErrNotFound if there is none.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	pr := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := pr.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get artifact: %w", err)
	}
	return decodeArtifact(data, out)
}

// deleteArtifact removes prefix/key. It returns ErrNotFound if there is no
// such key.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	pr := prefixeddb.NewPrefixedReader(s.db, prefix)
	if _, err := pr.Get(key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// iterateArtifacts calls fn for every value stored under prefix/sub. The
// value is only valid during the call.
func (s *Storage) iterateArtifacts(prefix, sub []byte, fn func(k, v []byte) error) error {
	pr := prefixeddb.NewPrefixedReader(s.db, prefix)
	var fnErr error
	if err := pr.Iterate(sub, func(k, v []byte) bool {
		fnErr = fn(k, v)
		return fnErr == nil
	}); err != nil {
		return fmt.Errorf("iterate artifacts: %w", err)
	}
	return fnErr
}

// SetLastBlock stores the last block processed by the event monitor.
func (s *Storage) SetLastBlock(block uint64) error {
	return s.setArtifact(metadataPrefix, lastBlockKey, block)
}

// LastBlock returns the last block processed by the event monitor, or zero.
func (s *Storage) LastBlock() (uint64, error) {
	var block uint64
	if err := s.getArtifact(metadataPrefix, lastBlockKey, &block); err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	return block, nil
}

// AddCampaignID records a campaign id seen in the contract events.
func (s *Storage) AddCampaignID(id uint64) error {
	return s.setArtifact(campaignPrefix, idKey(id), id)
}

// CampaignIDs returns the recorded campaign ids in ascending order.
func (s *Storage) CampaignIDs() ([]uint64, error) {
	var ids []uint64
	err := s.iterateArtifacts(campaignPrefix, nil, func(_, v []byte) error {
		var id uint64
		if err := decodeArtifact(v, &id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
