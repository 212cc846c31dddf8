package engine

import "strings"

// Effect is a status tag accumulated on a player during the night.
type Effect uint16

const (
	EffectHealed Effect = 1 << iota
	EffectWolved
	EffectVampired
	EffectHuntressed
	EffectHagged
	EffectSilenced
	EffectWitchHealed
	EffectWitchKilled
	EffectPriested
	EffectDoppelganged
	EffectCult
	EffectCupided
	EffectHoodlumed

	EffectNone Effect = 0
)

// transientEffects are wiped at the start of every night. The rest mark
// lasting bonds (cult, sweethearts, hoodlum marks, doppelganger, blessing).
const transientEffects = EffectHealed | EffectWolved | EffectVampired | EffectHuntressed |
	EffectHagged | EffectSilenced | EffectWitchHealed | EffectWitchKilled

var effectNames = []struct {
	e    Effect
	name string
}{
	{EffectHealed, "healed"},
	{EffectWolved, "wolf-bitten"},
	{EffectVampired, "vampire-bitten"},
	{EffectHuntressed, "lethal-shot"},
	{EffectHagged, "hagged"},
	{EffectSilenced, "silenced"},
	{EffectWitchHealed, "witch-heal"},
	{EffectWitchKilled, "witch-kill"},
	{EffectPriested, "priest-saved"},
	{EffectDoppelganged, "doppelganger-bound"},
	{EffectCult, "cult-member"},
	{EffectCupided, "sweetheart"},
	{EffectHoodlumed, "hoodlum-marked"},
}

// Effects is the per-player ledger, a bit set of Effect tags.
type Effects uint16

func (s Effects) Has(e Effect) bool { return Effect(s)&e != 0 }

func (s *Effects) Add(e Effect) { *s |= Effects(e) }

func (s *Effects) Remove(e Effect) { *s &^= Effects(e) }

// clearTransient drops everything that only lasts one night.
func (s *Effects) clearTransient() { *s &^= Effects(transientEffects) }

func (e Effect) String() string {
	for _, n := range effectNames {
		if n.e == e {
			return n.name
		}
	}
	return "none"
}

func (s Effects) String() string {
	var names []string
	for _, n := range effectNames {
		if s.Has(n.e) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}
