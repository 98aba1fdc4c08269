package types

import (
	"fmt"
	"strings"
)

// VoteChoice is the option selected by a voter.
type VoteChoice uint8

const (
	VoteNo VoteChoice = iota
	VoteYes
	VoteAbstain
)

// ParseVoteChoice parses "yes", "no" or "abstain", in any case.
func ParseVoteChoice(s string) (VoteChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return VoteYes, nil
	case "no":
		return VoteNo, nil
	case "abstain":
		return VoteAbstain, nil
	}
	return 0, NewValidationError("choice", "unknown vote choice %q", s)
}

// Valid reports whether v is one of the defined choices.
func (v VoteChoice) Valid() bool {
	return v <= VoteAbstain
}

func (v VoteChoice) String() string {
	switch v {
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	case VoteAbstain:
		return "abstain"
	}
	return fmt.Sprintf("choice(%d)", uint8(v))
}

func (v VoteChoice) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid vote choice %d", uint8(v))
	}
	return []byte(v.String()), nil
}

func (v *VoteChoice) UnmarshalText(data []byte) error {
	c, err := ParseVoteChoice(string(data))
	if err != nil {
		return err
	}
	*v = c
	return nil
}

// VoteStats are the only vote figures the contract exposes for a campaign.
type VoteStats struct {
	CurrentVotes uint64 `json:"currentVotes" cbor:"0,keyasint,omitempty"`
	TotalVoters  uint64 `json:"totalVoters"  cbor:"1,keyasint,omitempty"`
}
