package storage

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/vocdoni/arbo/memdb"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func TestVoteRecords(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	// Test 1: Get non-existent data
	r, err := st.VoteRecord(alice, 1)
	c.Assert(err, qt.Equals, ErrNotFound)
	c.Assert(r, qt.IsNil)

	// Test 2: Set and get a record
	now := time.Unix(1700000000, 0)
	record := &VoteRecord{
		Voter:      alice,
		CampaignID: 1,
		State:      "submitting",
		Choice:     types.VoteYes,
		TxHash:     common.HexToHash("0x01"),
		UpdatedAt:  now,
	}
	c.Assert(st.SetVoteRecord(record), qt.IsNil)
	r, err = st.VoteRecord(alice, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Voter, qt.Equals, alice)
	c.Assert(r.State, qt.Equals, "submitting")
	c.Assert(r.Choice, qt.Equals, types.VoteYes)
	c.Assert(r.TxHash, qt.Equals, record.TxHash)
	c.Assert(r.UpdatedAt.Unix(), qt.Equals, now.Unix())

	// Test 3: records are independent per campaign and per voter
	c.Assert(st.SetVoteRecord(&VoteRecord{Voter: alice, CampaignID: 2, State: "confirmed", Choice: types.VoteNo}), qt.IsNil)
	c.Assert(st.SetVoteRecord(&VoteRecord{Voter: bob, CampaignID: 1, State: "rejected", Reason: types.RejectDuplicateVote}), qt.IsNil)
	records, err := st.VoteRecords(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 2)
	c.Assert(records[0].CampaignID, qt.Equals, uint64(1))
	c.Assert(records[1].CampaignID, qt.Equals, uint64(2))
	c.Assert(records[1].Choice, qt.Equals, types.VoteNo)

	records, err = st.VoteRecords(bob)
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 1)
	c.Assert(records[0].Reason, qt.Equals, types.RejectDuplicateVote)

	// Test 4: overwrite and delete
	record.State = "confirmed"
	c.Assert(st.SetVoteRecord(record), qt.IsNil)
	r, err = st.VoteRecord(alice, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(r.State, qt.Equals, "confirmed")

	c.Assert(st.DeleteVoteRecord(alice, 1), qt.IsNil)
	c.Assert(st.DeleteVoteRecord(alice, 1), qt.IsNil)
	_, err = st.VoteRecord(alice, 1)
	c.Assert(err, qt.Equals, ErrNotFound)
}

func TestPendingWrites(t *testing.T) {
	c := qt.New(t)
	st := New(memdb.New())

	writes, err := st.PendingWrites()
	c.Assert(err, qt.IsNil)
	c.Assert(writes, qt.HasLen, 0)

	// stored in reverse submission order
	base := time.Unix(1700000000, 0)
	ops := []string{"cast vote", "make donation", "create campaign"}
	for i, op := range ops {
		c.Assert(st.AddPendingWrite(&PendingWrite{
			Hash:       common.BigToHash(big.NewInt(int64(i + 1))),
			ID:         op,
			Op:         op,
			CampaignID: uint64(i),
			From:       alice,
			Submitted:  base.Add(time.Duration(len(ops)-i) * time.Minute),
		}), qt.IsNil)
	}
	c.Assert(st.AddPendingWrite(&PendingWrite{Op: "no hash"}), qt.ErrorMatches, "pending write without hash")

	writes, err = st.PendingWrites()
	c.Assert(err, qt.IsNil)
	c.Assert(writes, qt.HasLen, 3)
	c.Assert(writes[0].Op, qt.Equals, "create campaign")
	c.Assert(writes[2].Op, qt.Equals, "cast vote")
	c.Assert(writes[2].From, qt.Equals, alice)

	c.Assert(st.DeletePendingWrite(common.BigToHash(big.NewInt(1))), qt.IsNil)
	writes, err = st.PendingWrites()
	c.Assert(err, qt.IsNil)
	c.Assert(writes, qt.HasLen, 2)
}

func TestLastBlockPersists(t *testing.T) {
	c := qt.New(t)
	dbPath := filepath.Join(t.TempDir(), "db")

	database, err := metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)
	st := New(database)
	block, err := st.LastBlock()
	c.Assert(err, qt.IsNil)
	c.Assert(block, qt.Equals, uint64(0))
	c.Assert(st.SetLastBlock(1234), qt.IsNil)
	st.Close()

	database, err = metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)
	st = New(database)
	defer st.Close()
	block, err = st.LastBlock()
	c.Assert(err, qt.IsNil)
	c.Assert(block, qt.Equals, uint64(1234))
}

func TestCampaignIDs(t *testing.T) {
	c := qt.New(t)
	st := New(memdb.New())

	ids, err := st.CampaignIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 0)

	for _, id := range []uint64{300, 2, 0, 2} {
		c.Assert(st.AddCampaignID(id), qt.IsNil)
	}
	ids, err = st.CampaignIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []uint64{0, 2, 300})
}
