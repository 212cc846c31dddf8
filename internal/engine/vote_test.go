package engine

import (
	"errors"
	"slices"
	"testing"
	"testing/quick"
)

func TestLynchBallotIsFinal(t *testing.T) {
	f := func(first, second uint8) bool {
		names := []string{"Ann", "Bob", "Cid", "Dee"}
		v := newVote(VoteLynch, 1, names, names, 1)
		pick := names[int(first)%len(names)]

		if err := v.SetVote("Ann", 1, []string{pick}); err != nil {
			t.Errorf("first ballot: %v", err)
			return false
		}
		once, _ := v.Ballot("Ann")
		if err := v.SetVote("Ann", 1, []string{pick}); err != nil {
			t.Errorf("repeated ballot: %v", err)
			return false
		}
		twice, _ := v.Ballot("Ann")
		if !slices.Equal(once, twice) {
			t.Errorf("ballot changed on repeat: %v != %v", once, twice)
			return false
		}

		other := names[int(second)%len(names)]
		if err := v.SetVote("Ann", 1, []string{other}); err != nil {
			t.Errorf("changed ballot: %v", err)
			return false
		}
		after, _ := v.Ballot("Ann")
		if !slices.Equal(after, []string{pick}) {
			t.Errorf("lynch ballot overwritten: got %v, want [%s]", after, pick)
			return false
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 20}); err != nil {
		t.Error(err)
	}
}

func TestTeamBallotIsOverwritten(t *testing.T) {
	v := newVote(VoteWerewolf, 1, []string{"Wolf"}, []string{"Ann", "Bob"}, 1)
	if err := v.SetVote("Wolf", 1, []string{"Ann"}); err != nil {
		t.Fatal(err)
	}
	if err := v.SetVote("Wolf", 1, []string{"Bob"}); err != nil {
		t.Fatal(err)
	}
	if b, _ := v.Ballot("Wolf"); !slices.Equal(b, []string{"Bob"}) {
		t.Errorf("team ballot = %v, want [Bob]", b)
	}
	if !v.IsComplete() {
		t.Error("single-voter team vote should be complete")
	}
}

func TestTeamVoteNeedsUnanimity(t *testing.T) {
	v := newVote(VoteWerewolf, 1, []string{"W1", "W2"}, []string{"Ann", "Bob", "Cid"}, 2)
	_ = v.SetVote("W1", 1, []string{"Ann", "Bob"})
	_ = v.SetVote("W2", 1, []string{"Ann"})
	if v.IsComplete() {
		t.Fatal("split team vote reported complete")
	}
	_ = v.SetVote("W2", 1, []string{"Bob", "Ann"})
	if !v.IsComplete() {
		t.Fatal("matching target sets should complete the vote")
	}
}

func TestMayorVoteCountsTwice(t *testing.T) {
	v := newVote(VoteLynch, 1, []string{"A", "B"}, []string{"X", "Y", "Z"}, 1)
	if err := v.SetVote("A", 2, []string{"X"}); err != nil {
		t.Fatal(err)
	}
	if err := v.SetVote("B", 1, []string{"Y"}); err != nil {
		t.Fatal(err)
	}

	tally := v.Tally()
	if tally["X"] != 2 || tally["Y"] != 1 || tally["Z"] != 0 {
		t.Errorf("tally = %v, want X=2 Y=1 Z=0", tally)
	}
	if got := v.MostVoted(); got != "X" {
		t.Errorf("most voted = %q, want X", got)
	}
}

func TestTieGoesToLowestName(t *testing.T) {
	v := newVote(VoteLynch, 1, []string{"A", "B"}, []string{"Mia", "Eve", "Zed"}, 1)
	_ = v.SetVote("A", 1, []string{"Mia"})
	_ = v.SetVote("B", 1, []string{"Eve"})
	if got := v.MostVoted(); got != "Eve" {
		t.Errorf("tie resolved to %q, want Eve", got)
	}
	if got := v.Ranking(); !slices.Equal(got, []string{"Eve", "Mia", "Zed"}) {
		t.Errorf("ranking = %v", got)
	}
}

func TestSetVoteRejectsBadBallots(t *testing.T) {
	v := newVote(VoteLynch, 1, []string{"A"}, []string{"X", "Y"}, 1)

	cases := []struct {
		name   string
		voter  string
		votees []string
		want   error
	}{
		{"unknown voter", "Q", []string{"X"}, ErrNotFound},
		{"unknown votee", "A", []string{"Q"}, ErrNotFound},
		{"empty ballot", "A", nil, ErrInvalidState},
		{"too many votees", "A", []string{"X", "Y"}, ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := v.SetVote(tc.voter, 1, tc.votees); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	v.Resolved = true
	if err := v.SetVote("A", 1, []string{"X"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("vote on resolved ballot: err = %v", err)
	}
}

func TestVampedVoteeNeedsExactlyTwoVotes(t *testing.T) {
	voters := []string{"A", "B", "C"}
	v := newVote(VoteLynch, 1, voters, []string{"X", "Y"}, 1)
	_ = v.SetVote("A", 2, []string{"X"})
	_ = v.SetVote("B", 1, []string{"Y"})
	bitten := func(name string) bool { return name == "X" || name == "Y" }

	// X has a weighted total of two but only one raw vote.
	if got := v.VampedVotee(bitten); got != "" {
		t.Errorf("vamped votee = %q, want none", got)
	}
	_ = v.SetVote("C", 1, []string{"Y"})
	if got := v.VampedVotee(bitten); got != "Y" {
		t.Errorf("vamped votee = %q, want Y", got)
	}
}
