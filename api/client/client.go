// Package client is a Go client of the local API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/aggregate"
	"github.com/fundshadow/fundshadow-client/api"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/voting"
)

const (
	// DefaultRetries is the number of attempts of a request whose connection
	// fails.
	DefaultRetries = 3
	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second

	retryInterval = 500 * time.Millisecond
)

// HTTPclient is the Fund Shadow local API HTTP client.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	retries uint64
}

// New returns a client for the API at host, checking it answers pings.
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid API host %q: %w", host, err)
	}
	c := &HTTPclient{
		c:       &http.Client{Timeout: DefaultTimeout},
		host:    hostURL,
		retries: DefaultRetries,
	}
	if err := c.call(context.Background(), http.MethodGet, nil, nil, nil, api.PingEndpoint); err != nil {
		return nil, fmt.Errorf("API at %s not reachable: %w", hostURL, err)
	}
	log.Debugw("api client ready", "host", hostURL.String())
	return c, nil
}

// Request sends a request to the path joined from urlPath, with body encoded
// as JSON when not nil and params as query key-value pairs. Requests whose
// connection fails are retried; any HTTP response is returned as is, with
// its status code.
func (c *HTTPclient) Request(ctx context.Context, method string, body any, params url.Values, urlPath ...string) ([]byte, int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, 0, fmt.Errorf("failed to encode request: %w", err)
		}
	}
	u := *c.host
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	u.RawQuery = params.Encode()

	var resp *http.Response
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), c.retries-1)
	err := backoff.RetryNotify(func() error {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err = c.c.Do(req)
		return err
	}, backoff.WithContext(bo, ctx), func(err error, _ time.Duration) {
		log.Warnw("api request failed, retrying", "method", method, "url", u.String(), "error", err.Error())
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s failed: %w", method, u.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// call performs a request and decodes a successful response into out. Error
// responses are returned as api.Error values.
func (c *HTTPclient) call(ctx context.Context, method string, body any, params url.Values, out any, urlPath ...string) error {
	data, status, err := c.Request(ctx, method, body, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		apiErr := api.Error{HTTPstatus: status}
		if err := json.Unmarshal(data, &apiErr); err != nil {
			return fmt.Errorf("API error: %d (%s)", status, strings.TrimSpace(string(data)))
		}
		apiErr.HTTPstatus = status
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func waitParams(wait bool) url.Values {
	if !wait {
		return nil
	}
	return url.Values{api.WaitQueryParam: {"true"}}
}

func idPath(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// Campaigns returns the cards of the given campaigns, or of every campaign
// known by the API when none is given.
func (c *HTTPclient) Campaigns(ids ...uint64) (*api.CampaignsResponse, error) {
	var params url.Values
	if len(ids) > 0 {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = idPath(id)
		}
		params = url.Values{"ids": {strings.Join(parts, ",")}}
	}
	resp := &api.CampaignsResponse{}
	return resp, c.call(context.Background(), http.MethodGet, nil, params, resp, api.CampaignsEndpoint)
}

// Campaign returns the card of a campaign.
func (c *HTTPclient) Campaign(id uint64) (*aggregate.Card, error) {
	card := &aggregate.Card{}
	return card, c.call(context.Background(), http.MethodGet, nil, nil, card, "campaigns", idPath(id))
}

// CreateCampaign submits a new campaign. With wait, the outcome is included.
func (c *HTTPclient) CreateCampaign(req *api.CampaignRequest, wait bool) (*api.TxResponse, error) {
	tx := &api.TxResponse{}
	return tx, c.call(context.Background(), http.MethodPost, req, waitParams(wait), tx, api.CampaignsEndpoint)
}

// Donate submits a donation to a campaign.
func (c *HTTPclient) Donate(campaignID uint64, req *api.DonationRequest, wait bool) (*api.TxResponse, error) {
	tx := &api.TxResponse{}
	return tx, c.call(context.Background(), http.MethodPost, req, waitParams(wait), tx, "campaigns", idPath(campaignID), "donations")
}

// Donations lists the donations of a campaign.
func (c *HTTPclient) Donations(campaignID uint64) (*api.DonationsResponse, error) {
	resp := &api.DonationsResponse{}
	return resp, c.call(context.Background(), http.MethodGet, nil, nil, resp, "campaigns", idPath(campaignID), "donations")
}

// Vote casts the vote of the wallet of the API on a campaign.
func (c *HTTPclient) Vote(campaignID uint64, choice types.VoteChoice, wait bool) (*voting.Session, error) {
	s := &voting.Session{}
	req := &api.VoteRequest{Choice: choice.String()}
	return s, c.call(context.Background(), http.MethodPost, req, waitParams(wait), s, "campaigns", idPath(campaignID), "vote")
}

// Donor returns the profile of a donor.
func (c *HTTPclient) Donor(address common.Address) (*types.DonorProfile, error) {
	p := &types.DonorProfile{}
	return p, c.call(context.Background(), http.MethodGet, nil, nil, p, "donors", address.Hex())
}

// Dashboard returns the summary of every campaign known by the API.
func (c *HTTPclient) Dashboard() (*api.DashboardResponse, error) {
	d := &api.DashboardResponse{}
	return d, c.call(context.Background(), http.MethodGet, nil, nil, d, api.DashboardEndpoint)
}

// Tx returns the state of a write.
func (c *HTTPclient) Tx(hash common.Hash) (*api.TxResponse, error) {
	tx := &api.TxResponse{}
	return tx, c.call(context.Background(), http.MethodGet, nil, nil, tx, "txs", hash.Hex())
}
