package engine

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// VoteKind is the decision a vote settles.
type VoteKind int

const (
	VoteLynch VoteKind = iota
	VoteWerewolf
	VoteVampire
)

func (k VoteKind) String() string {
	switch k {
	case VoteWerewolf:
		return "werewolf-target"
	case VoteVampire:
		return "vampire-target"
	default:
		return "lynch"
	}
}

// Vote collects ballots for exactly one decision.
type Vote struct {
	ID        string
	Kind      VoteKind
	Cycle     int
	Voters    []string
	Votees    []string
	MaxVotees int
	Resolved  bool

	ballot map[string][]string
	weight map[string]int
}

func newVote(kind VoteKind, cycle int, voters, votees []string, maxVotees int) *Vote {
	if maxVotees < 1 {
		maxVotees = 1
	}
	return &Vote{
		ID:        uuid.NewString(),
		Kind:      kind,
		Cycle:     cycle,
		Voters:    voters,
		Votees:    votees,
		MaxVotees: maxVotees,
		ballot:    make(map[string][]string),
		weight:    make(map[string]int),
	}
}

// SetVote records voter's ballot with the given weight. A lynch ballot is
// final once cast and later calls are ignored; team ballots are overwritten.
func (v *Vote) SetVote(voter string, weight int, votees []string) error {
	if v.Resolved {
		return fmt.Errorf("vote %s already resolved: %w", v.ID, ErrInvalidState)
	}
	if !slices.Contains(v.Voters, voter) {
		return fmt.Errorf("%s may not vote in %s: %w", voter, v.ID, ErrNotFound)
	}
	var picked []string
	for _, name := range votees {
		if !slices.Contains(v.Votees, name) {
			return fmt.Errorf("%s is not on the ballot: %w", name, ErrNotFound)
		}
		if !slices.Contains(picked, name) {
			picked = append(picked, name)
		}
	}
	if len(picked) == 0 || len(picked) > v.MaxVotees {
		return fmt.Errorf("ballot names %d players, want 1 to %d: %w", len(picked), v.MaxVotees, ErrInvalidState)
	}
	if _, cast := v.ballot[voter]; cast && v.Kind == VoteLynch {
		return nil
	}
	v.ballot[voter] = picked
	v.weight[voter] = max(weight, 1)
	return nil
}

// Ballot returns voter's current entry.
func (v *Vote) Ballot(voter string) ([]string, bool) {
	b, ok := v.ballot[voter]
	return slices.Clone(b), ok
}

// Ballots returns a copy of every entry cast so far.
func (v *Vote) Ballots() map[string][]string {
	out := make(map[string][]string, len(v.ballot))
	for voter, b := range v.ballot {
		out[voter] = slices.Clone(b)
	}
	return out
}

// IsComplete reports whether every eligible voter has cast a ballot. Team
// votes must also be unanimous: every entry names the same set as the first
// voter's.
func (v *Vote) IsComplete() bool {
	for _, voter := range v.Voters {
		if _, ok := v.ballot[voter]; !ok {
			return false
		}
	}
	if v.Kind == VoteLynch || len(v.Voters) == 0 {
		return true
	}
	ref := v.ballot[v.Voters[0]]
	for _, b := range v.ballot {
		if !sameSet(b, ref) {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	for _, x := range a {
		if !slices.Contains(b, x) {
			return false
		}
	}
	for _, x := range b {
		if !slices.Contains(a, x) {
			return false
		}
	}
	return true
}

// Tally returns the weighted total for every votee.
func (v *Vote) Tally() map[string]int {
	totals := make(map[string]int, len(v.Votees))
	for _, name := range v.Votees {
		totals[name] = 0
	}
	for voter, b := range v.ballot {
		for _, name := range b {
			totals[name] += v.weight[voter]
		}
	}
	return totals
}

func (v *Vote) rawCounts() map[string]int {
	counts := make(map[string]int, len(v.Votees))
	for _, b := range v.ballot {
		for _, name := range b {
			counts[name]++
		}
	}
	return counts
}

// Ranking orders votees by weighted total, highest first. Ties go to the
// lexicographically lowest name.
func (v *Vote) Ranking() []string {
	totals := v.Tally()
	names := slices.Sorted(maps.Keys(totals))
	slices.SortStableFunc(names, func(a, b string) int {
		return cmp.Compare(totals[b], totals[a])
	})
	return names
}

// MostVoted returns the winning votee, or "" when there are none.
func (v *Vote) MostVoted() string {
	ranked := v.Ranking()
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0]
}

// VampedVotee returns a vampire-bitten votee that drew exactly two raw
// votes, or "".
func (v *Vote) VampedVotee(bitten func(name string) bool) string {
	counts := v.rawCounts()
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		if counts[name] == 2 && bitten(name) {
			return name
		}
	}
	return ""
}
