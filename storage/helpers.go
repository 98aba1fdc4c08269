package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
)

// artifactMode encodes records deterministically, so equal records give
// equal bytes.
var artifactMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func encodeArtifact(a any) ([]byte, error) {
	data, err := artifactMode.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", a, err)
	}
	return data, nil
}

func decodeArtifact(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %T: %w", out, err)
	}
	return nil
}

// voteKey is the voter address followed by the big endian campaign id, so
// the records of a voter share a prefix.
func voteKey(voter common.Address, campaignID uint64) []byte {
	key := make([]byte, common.AddressLength+8)
	copy(key, voter.Bytes())
	binary.BigEndian.PutUint64(key[common.AddressLength:], campaignID)
	return key
}

// idKey is the big endian id, so iteration follows the numeric order.
func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
