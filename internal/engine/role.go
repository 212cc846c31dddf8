package engine

import (
	"fmt"
	"strings"
)

// Team is the faction a role plays for.
type Team int

const (
	TeamVillage Team = iota
	TeamWerewolves
	TeamVampires
	TeamCult
)

func (t Team) String() string {
	switch t {
	case TeamWerewolves:
		return "Werewolves"
	case TeamVampires:
		return "Vampires"
	case TeamCult:
		return "Cult"
	default:
		return "Village"
	}
}

// RoleKind identifies a role variant in the catalog.
type RoleKind int

// Active roles.
const (
	RoleAlfaWolf RoleKind = iota
	RoleApprenticeSeer
	RoleAuraSeer
	RoleBodyguard
	RoleCultLeader
	RoleDrunk
	RoleHuntress
	RoleLoneWolf
	RoleMinion
	RoleMysticSeer
	RoleOldHag
	RolePriest
	RolePI
	RoleRevealer
	RoleSeer
	RoleSorceress
	RoleSpellcaster
	RoleVampire
	RoleVillager
	RoleWerewolf
	RoleWitch
	RoleWolfCub

	// Passive roles. Villager doubles as the plain passive.
	RoleCupid
	RoleCursed
	RoleDiseased
	RoleDoppelganger
	RoleHoodlum
	RoleHunter
	RoleLycan
	RoleMadBomber
	RoleMason
	RoleMayor
	RolePrince
	RolePacifist
	RoleTanner
	RoleTroublemaker
	RoleToughGuy
	RoleVillageIdiot

	roleKindCount
)

func (k RoleKind) String() string {
	if k < 0 || k >= roleKindCount {
		return fmt.Sprintf("RoleKind(%d)", int(k))
	}
	return catalog[k].name
}

// Team returns the affiliation a fresh role of this kind starts with.
func (k RoleKind) Team() Team { return catalog[k].team }

// Wakes reports whether the role takes part in the night loop.
func (k RoleKind) Wakes() bool { return catalog[k].wakes }

// Targets reports how many players the role names when it acts.
func (k RoleKind) Targets() int { return catalog[k].targets }

// Passive reports whether the role is dealt from the passive deck. The
// Villager belongs to both decks and reports false.
func (k RoleKind) Passive() bool { return catalog[k].passive }

// InDeck reports whether the role may be dealt from the passive deck
// (passive true) or the active deck.
func (k RoleKind) InDeck(passive bool) bool {
	return k == RoleVillager || catalog[k].passive == passive
}

// Describe returns the one-line rules summary shown when roles are dealt.
func (k RoleKind) Describe() string { return catalog[k].blurb }

// RoleKinds lists every role in catalog order.
func RoleKinds() []RoleKind {
	out := make([]RoleKind, roleKindCount)
	for k := range out {
		out[k] = RoleKind(k)
	}
	return out
}

func normalizeRoleName(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(s)
}

// ParseRoleKind resolves a role by display name. Matching ignores case,
// spaces, underscores, dashes and dots, so "Alfa Wolf", "ALFA_WOLF" and
// "alfawolf" are the same role.
func ParseRoleKind(name string) (RoleKind, error) {
	n := normalizeRoleName(name)
	for k := RoleKind(0); k < roleKindCount; k++ {
		if normalizeRoleName(catalog[k].name) == n {
			return k, nil
		}
	}
	return 0, fmt.Errorf("role %q: %w", name, ErrNotFound)
}

// WakeState tracks a role's progress through one night.
type WakeState int

const (
	Unawoken WakeState = iota
	Waking
	Awoken
)

func (s WakeState) String() string {
	switch s {
	case Waking:
		return "WAKING"
	case Awoken:
		return "AWOKEN"
	default:
		return "UNAWOKEN"
	}
}

// Answer is the slot for a gating yes/no question.
type Answer int

const (
	Unanswered Answer = iota
	AnsweredYes
	AnsweredNo
)

// Pending is what a WAKING role is waiting for.
type Pending int

const (
	PendingNone   Pending = iota
	PendingAnswer         // question asked, waiting for yes/no
	PendingTarget         // waiting for target names
	PendingAck            // narrative delivered, waiting for role-finished
	PendingCult           // cult notice delivered, waiting for role-finished
	PendingGroup          // team member, waiting for the team vote
)

// Slot says which of a player's two roles is meant.
type Slot int

const (
	SlotActive Slot = iota
	SlotPassive
)

// Role is one dealt role. It holds no reference to its owner; the engine
// always passes the owning player alongside it.
type Role struct {
	Kind     RoleKind
	Team     Team
	State    WakeState
	Pending  Pending
	Used     bool
	KillUsed bool
	Answer   Answer
}

func newRole(kind RoleKind) *Role {
	return &Role{Kind: kind, Team: kind.Team()}
}

func (r *Role) Name() string { return r.Kind.String() }

// hasQuestion reports whether the role gates its ability on a question.
func (r *Role) hasQuestion() bool { return catalog[r.Kind].question != "" }

// sleep resets the role for a new night.
func (r *Role) sleep() {
	r.State = Unawoken
	r.Pending = PendingNone
}

func (r *Role) wake(p Pending) {
	r.State = Waking
	r.Pending = p
}

func (r *Role) finish() {
	r.State = Awoken
	r.Pending = PendingNone
}
