package storage

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/types"
)

// VoteRecord is the locally cached state of the voting session of a voter
// on a campaign. It is advisory: the contract is the source of truth.
type VoteRecord struct {
	Voter      common.Address     `cbor:"1,keyasint"`
	CampaignID uint64             `cbor:"2,keyasint"`
	State      string             `cbor:"3,keyasint"`
	Choice     types.VoteChoice   `cbor:"4,keyasint"`
	TxHash     common.Hash        `cbor:"5,keyasint,omitempty"`
	Reason     types.RejectReason `cbor:"6,keyasint,omitempty"`
	Detail     string             `cbor:"7,keyasint,omitempty"`
	UpdatedAt  time.Time          `cbor:"8,keyasint"`
}

// PendingWrite is a transaction submitted by this client whose outcome is
// not known yet.
type PendingWrite struct {
	Hash       common.Hash    `cbor:"1,keyasint"`
	ID         string         `cbor:"2,keyasint"`
	Op         string         `cbor:"3,keyasint"`
	CampaignID uint64         `cbor:"4,keyasint,omitempty"`
	From       common.Address `cbor:"5,keyasint"`
	Submitted  time.Time      `cbor:"6,keyasint"`
}

// SetVoteRecord stores r, replacing any previous record of the same voter
// and campaign.
func (s *Storage) SetVoteRecord(r *VoteRecord) error {
	if r == nil {
		return fmt.Errorf("nil vote record")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.setArtifact(voteRecordPrefix, voteKey(r.Voter, r.CampaignID), r)
}

// VoteRecord returns the record of voter on campaignID, or ErrNotFound.
func (s *Storage) VoteRecord(voter common.Address, campaignID uint64) (*VoteRecord, error) {
	r := &VoteRecord{}
	if err := s.getArtifact(voteRecordPrefix, voteKey(voter, campaignID), r); err != nil {
		return nil, err
	}
	return r, nil
}

// VoteRecords returns all the records of voter ordered by campaign id.
func (s *Storage) VoteRecords(voter common.Address) ([]*VoteRecord, error) {
	var records []*VoteRecord
	if err := s.iterateArtifacts(voteRecordPrefix, voter.Bytes(), func(_, v []byte) error {
		r := &VoteRecord{}
		if err := decodeArtifact(v, r); err != nil {
			return err
		}
		records = append(records, r)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list vote records: %w", err)
	}
	slices.SortFunc(records, func(a, b *VoteRecord) int {
		return cmp.Compare(a.CampaignID, b.CampaignID)
	})
	return records, nil
}

// DeleteVoteRecord removes the record of voter on campaignID, if any.
func (s *Storage) DeleteVoteRecord(voter common.Address, campaignID uint64) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.deleteArtifact(voteRecordPrefix, voteKey(voter, campaignID)); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete vote record: %w", err)
	}
	return nil
}

// AddPendingWrite stores a submitted write until it is resolved.
func (s *Storage) AddPendingWrite(w *PendingWrite) error {
	if w == nil || w.Hash == (common.Hash{}) {
		return fmt.Errorf("pending write without hash")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.setArtifact(pendingWritePrefix, w.Hash.Bytes(), w)
}

// DeletePendingWrite removes a resolved write.
func (s *Storage) DeletePendingWrite(hash common.Hash) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.deleteArtifact(pendingWritePrefix, hash.Bytes()); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete pending write: %w", err)
	}
	return nil
}

// PendingWrites returns the writes not resolved yet, oldest first.
func (s *Storage) PendingWrites() ([]*PendingWrite, error) {
	var writes []*PendingWrite
	if err := s.iterateArtifacts(pendingWritePrefix, nil, func(_, v []byte) error {
		w := &PendingWrite{}
		if err := decodeArtifact(v, w); err != nil {
			return err
		}
		writes = append(writes, w)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list pending writes: %w", err)
	}
	slices.SortStableFunc(writes, func(a, b *PendingWrite) int {
		return a.Submitted.Compare(b.Submitted)
	})
	return writes, nil
}
