package engine

// Player is one seat in a game.
type Player struct {
	Name    string
	Dead    bool
	Ready   bool
	Active  *Role
	Passive *Role
	Effects Effects

	// deathCycle is the cycle a bitten Tough Guy finally dies on; zero when
	// no death is scheduled.
	deathCycle int
}

func (p *Player) Is(e Effect) bool { return p.Effects.Has(e) }

// IsWolf reports whether the player's active role hunts with the pack.
func (p *Player) IsWolf() bool {
	return p.Active != nil && isWolfKind(p.Active.Kind)
}

// IsVampire reports whether the player's active role is a vampire.
func (p *Player) IsVampire() bool {
	return p.Active != nil && p.Active.Kind == RoleVampire
}

func (p *Player) hasPassive(k RoleKind) bool {
	return p.Passive != nil && p.Passive.Kind == k
}

func (p *Player) hasActive(k RoleKind) bool {
	return p.Active != nil && p.Active.Kind == k
}

// Role returns the role in the given slot.
func (p *Player) Role(s Slot) *Role {
	if s == SlotPassive {
		return p.Passive
	}
	return p.Active
}

// Holds reports whether either of the player's roles is of kind k.
func (p *Player) Holds(k RoleKind) bool {
	return p.hasActive(k) || p.hasPassive(k)
}

// Assignment describes the player's dealt roles.
func (p *Player) Assignment() RoleAssignment {
	return RoleAssignment{Player: p.Name, Active: roleCard(p.Active), Passive: roleCard(p.Passive)}
}

func (p *Player) kill()   { p.Dead = true }
func (p *Player) revive() { p.Dead = false }
