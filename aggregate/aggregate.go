// Package aggregate computes the display statistics of campaigns. It works
// only from the campaign level figures the contract exposes and from the
// acting user's own ballot; individual votes of other voters never reach
// it.
package aggregate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fundshadow/fundshadow-client/types"
)

// ParticipationRate returns current/total as a percentage in [0, 100]. It is
// zero when total is zero.
func ParticipationRate(current, total uint64) float64 {
	if total == 0 {
		return 0
	}
	rate := float64(current) / float64(total) * 100
	return math.Min(rate, 100)
}

// Participation is ParticipationRate rounded for display, halves away from
// zero.
func Participation(current, total uint64) int {
	return int(math.Round(ParticipationRate(current, total)))
}

// Remaining is the time left before the end of a campaign.
type Remaining struct {
	Duration time.Duration `json:"duration"`
	Ended    bool          `json:"ended"`
	Label    string        `json:"label"`
}

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// TimeRemaining returns end - now floored at zero. Once it is not positive
// the campaign is reported as ended.
func TimeRemaining(end, now time.Time) Remaining {
	d := end.Sub(now)
	if d <= 0 {
		return Remaining{Ended: true, Label: "ended"}
	}
	return Remaining{Duration: d, Label: label(d)}
}

func label(d time.Duration) string {
	switch {
	case d >= week:
		return plural(int(d/week), "week")
	case d >= day:
		return plural(int(d/day), "day")
	case d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	}
	return "less than a minute"
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Status is the display status of a campaign.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
	StatusFunded Status = "funded"
)

// CampaignStatus returns funded once the contract reports the target as
// reached, active while the campaign accepts donations and votes, ended
// otherwise.
func CampaignStatus(c *types.Campaign, now time.Time) Status {
	switch {
	case c.Totals != nil && c.Totals.Funded:
		return StatusFunded
	case c.AcceptsActions(now):
		return StatusActive
	}
	return StatusEnded
}

// Ballot is the acting user's own vote on a campaign, as known by its
// voting session.
type Ballot struct {
	Choice types.VoteChoice
	// Confirmed is set once the vote is recorded by the contract.
	Confirmed bool
	// Closed is set when no further vote is possible, whether a vote is
	// in flight, recorded or terminally rejected.
	Closed bool
}

// ChoiceSource returns the ballot of the acting user on a campaign. It must
// only be backed by that user's own voting sessions.
type ChoiceSource interface {
	OwnChoice(campaignID uint64) (Ballot, bool)
}

// Card is the display projection of a campaign.
type Card struct {
	Campaign          *types.Campaign `json:"campaign"`
	Status            Status          `json:"status"`
	CurrentVotes      uint64          `json:"currentVotes"`
	TotalVoters       uint64          `json:"totalVoters"`
	ParticipationRate float64         `json:"participationRate"`
	Participation     int             `json:"participation"`
	Remaining         Remaining       `json:"remaining"`
	CanVote           bool            `json:"canVote"`
	// HasVoted is set once the own vote is confirmed, not while it is in
	// flight.
	HasVoted          bool            `json:"hasVoted"`
	MyChoice          string          `json:"myChoice,omitempty"`
}

// NewCard projects c at now. choices may be nil when no wallet is
// connected.
func NewCard(c *types.Campaign, now time.Time, choices ChoiceSource) *Card {
	card := &Card{
		Campaign:  c,
		Status:    CampaignStatus(c, now),
		Remaining: TimeRemaining(c.EndTime, now),
	}
	if c.Votes != nil {
		card.CurrentVotes, card.TotalVoters = c.Votes.CurrentVotes, c.Votes.TotalVoters
		card.ParticipationRate = ParticipationRate(c.Votes.CurrentVotes, c.Votes.TotalVoters)
		card.Participation = Participation(c.Votes.CurrentVotes, c.Votes.TotalVoters)
	}
	card.CanVote = choices != nil && card.Status == StatusActive
	if choices == nil {
		return card
	}
	if b, ok := choices.OwnChoice(c.ID); ok {
		card.HasVoted = b.Confirmed
		if b.Closed {
			card.CanVote = false
		}
		if b.Confirmed {
			card.MyChoice = strings.ToUpper(b.Choice.String())
		}
	}
	return card
}

// Dashboard summarizes a set of campaigns.
type Dashboard struct {
	Cards                []*Card       `json:"cards"`
	ActiveProposals      int           `json:"activeProposals"`
	TotalRaised          *types.BigInt `json:"totalRaised"`
	TotalDonors          uint64        `json:"totalDonors"`
	AverageParticipation int           `json:"averageParticipation"`
}

// NewDashboard builds the cards of campaigns and their totals. Campaigns
// without vote figures do not count towards the average participation.
func NewDashboard(campaigns []*types.Campaign, now time.Time, choices ChoiceSource) *Dashboard {
	d := &Dashboard{
		Cards:       make([]*Card, 0, len(campaigns)),
		TotalRaised: types.NewInt(0),
	}
	var rates float64
	var withVotes int
	for _, c := range campaigns {
		card := NewCard(c, now, choices)
		d.Cards = append(d.Cards, card)
		if card.Status == StatusActive {
			d.ActiveProposals++
		}
		if c.Totals != nil {
			if c.Totals.CurrentAmount != nil {
				d.TotalRaised.Add(d.TotalRaised, c.Totals.CurrentAmount)
			}
			d.TotalDonors += c.Totals.DonorCount
		}
		if c.Votes != nil {
			rates += card.ParticipationRate
			withVotes++
		}
	}
	if withVotes > 0 {
		d.AverageParticipation = int(math.Round(rates / float64(withVotes)))
	}
	return d
}
