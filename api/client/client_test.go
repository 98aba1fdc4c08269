package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/fundshadow/fundshadow-client/api"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/registry"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/voting"
	"github.com/fundshadow/fundshadow-client/wallet"
)

func newTestClient(c *qt.C) (*HTTPclient, *gateway.MockBackend) {
	mock, err := gateway.NewMockBackend()
	c.Assert(err, qt.IsNil)
	w, err := wallet.GenerateKeyWallet()
	c.Assert(err, qt.IsNil)
	gw := gateway.New(mock, w, mock.Codec(), gateway.WithPollInterval(10*time.Millisecond))
	reg := registry.New(gw, registry.WithRetryTime(0))
	mgr := voting.NewManager(gw, reg, nil)
	a, err := api.New(&api.APIConfig{Host: "127.0.0.1", Gateway: gw, Registry: reg, Voting: mgr})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Check(a.Close(ctx), qt.IsNil)
		mgr.Close()
		gw.Close()
	})
	cli, err := New("http://" + a.Addr().String())
	c.Assert(err, qt.IsNil)
	return cli, mock
}

func TestClientFlow(t *testing.T) {
	c := qt.New(t)
	cli, mock := newTestClient(c)

	tx, err := cli.CreateCampaign(&api.CampaignRequest{
		Name:     "Shelter",
		Category: "Disaster Relief",
		Target:   api.PlainAmount("100"),
		Duration: 24 * 3600,
	}, true)
	c.Assert(err, qt.IsNil)
	c.Assert(tx.Phase, qt.Equals, gateway.PhaseConfirmed)
	c.Assert(tx.CreatedID, qt.IsNotNil)
	id := *tx.CreatedID
	mock.SetTotalVoters(id, 2)

	_, err = cli.Donate(id, &api.DonationRequest{Amount: api.PlainAmount("100")}, true)
	c.Assert(err, qt.IsNil)
	donations, err := cli.Donations(id)
	c.Assert(err, qt.IsNil)
	c.Assert(donations.Donations, qt.HasLen, 1)

	s, err := cli.Vote(id, types.VoteAbstain, true)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, voting.StateConfirmed)

	card, err := cli.Campaign(id)
	c.Assert(err, qt.IsNil)
	c.Assert(card.Campaign.Totals.Funded, qt.IsTrue)
	c.Assert(card.MyChoice, qt.Equals, "ABSTAIN")
	c.Assert(card.Participation, qt.Equals, 50)

	dash, err := cli.Dashboard()
	c.Assert(err, qt.IsNil)
	c.Assert(dash.Cards, qt.HasLen, 1)
	c.Assert(dash.TotalRaised.String(), qt.Equals, "100")

	got, err := cli.Tx(tx.Hash)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Phase, qt.Equals, gateway.PhaseConfirmed)
}

func TestClientErrors(t *testing.T) {
	c := qt.New(t)
	cli, _ := newTestClient(c)

	_, err := cli.Campaign(42)
	var apiErr api.Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Code, qt.Equals, api.ErrResourceNotFound.Code)
	c.Assert(apiErr.HTTPstatus, qt.Equals, http.StatusNotFound)

	_, err = cli.Donate(42, &api.DonationRequest{Amount: api.PlainAmount("1.5")}, false)
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Code, qt.Equals, api.ErrResourceNotFound.Code)

	_, err = New("http://127.0.0.1:1")
	c.Assert(err, qt.IsNotNil)
}
