package engine

// checkKind selects what an information role learns about its target.
type checkKind int

const (
	checkNone     checkKind = iota
	checkWerewolf           // is the target a werewolf (or Lycan)
	checkAura               // is the target a vampire or the cult leader
	checkSeer               // is the target the Seer
	checkRole               // name the target's active role
	checkReveal             // kill the target if it is a werewolf, else die
)

// roleSpec holds the fixed parameters of a role kind. Behavior that does not
// fit the parameters lives in the abilities table.
type roleSpec struct {
	name       string
	team       Team
	passive    bool
	wakes      bool
	targets    int
	effect     Effect
	check      checkKind
	cancelable bool
	oneShot    bool
	question   string
	blurb      string
}

var catalog = [roleKindCount]roleSpec{
	RoleAlfaWolf: {
		name: "Alfa Wolf", team: TeamWerewolves, wakes: true,
		question: "Will the Alfa Wolf turn the target into a werewolf?",
		blurb:    "After a werewolf is lynched, may turn the pack's next victim into a werewolf.",
	},
	RoleApprenticeSeer: {
		name: "Apprentice Seer", team: TeamVillage, wakes: true,
		blurb: "Becomes the Seer once no Seer is left.",
	},
	RoleAuraSeer: {
		name: "Aura Seer", team: TeamVillage, wakes: true, targets: 1, check: checkAura,
		blurb: "Each night learns whether a player is a Vampire or the Cult Leader.",
	},
	RoleBodyguard: {
		name: "Bodyguard", team: TeamVillage, wakes: true, targets: 1, effect: EffectHealed,
		blurb: "Each night protects one player from death.",
	},
	RoleCultLeader: {
		name: "Cult Leader", team: TeamCult, wakes: true, targets: 1, effect: EffectCult,
		blurb: "Each night brings one player into the cult. Wins when everyone alive is in it.",
	},
	RoleDrunk: {
		name: "Drunk", team: TeamVillage, wakes: true,
		blurb: "Sobers up on the second night and becomes a random role.",
	},
	RoleHuntress: {
		name: "Huntress", team: TeamVillage, wakes: true, targets: 1, effect: EffectHuntressed, oneShot: true,
		question: "Will the Huntress use her shot?",
		blurb:    "Once per game shoots a player at night.",
	},
	RoleLoneWolf: {
		name: "Lone Wolf", team: TeamWerewolves, wakes: true, targets: 1, effect: EffectWolved,
		blurb: "Hunts with the pack but only wins as the last player standing.",
	},
	RoleMinion: {
		name: "Minion", team: TeamWerewolves, wakes: true,
		blurb: "Learns who the werewolves are on the first night.",
	},
	RoleMysticSeer: {
		name: "Mystic Seer", team: TeamVillage, wakes: true, targets: 1, check: checkRole,
		blurb: "Each night learns the exact role of a player.",
	},
	RoleOldHag: {
		name: "Old Hag", team: TeamVillage, wakes: true, targets: 1, effect: EffectHagged,
		blurb: "Each night sends a player out of the village for the following day.",
	},
	RolePriest: {
		name: "Priest", team: TeamVillage, wakes: true, targets: 1, effect: EffectPriested, oneShot: true,
		question: "Will the Priest bless a player?",
		blurb:    "Once per game blesses a player, who survives the next attempt on their life.",
	},
	RolePI: {
		name: "P.I.", team: TeamVillage, wakes: true,
		blurb: "Each night learns whether either neighbor is a werewolf.",
	},
	RoleRevealer: {
		name: "Revealer", team: TeamVillage, wakes: true, targets: 1, check: checkReveal, cancelable: true, oneShot: true,
		question: "Will the Revealer use his shot?",
		blurb:    "Shoots a player: a werewolf dies, anyone else costs the Revealer his life.",
	},
	RoleSeer: {
		name: "Seer", team: TeamVillage, wakes: true, targets: 1, check: checkWerewolf,
		blurb: "Each night learns whether a player is a werewolf.",
	},
	RoleSorceress: {
		name: "Sorceress", team: TeamWerewolves, wakes: true, targets: 1, check: checkSeer,
		blurb: "Each night looks for the Seer.",
	},
	RoleSpellcaster: {
		name: "Spellcaster", team: TeamVillage, wakes: true, targets: 1, effect: EffectSilenced,
		blurb: "Each night silences a player for the following day.",
	},
	RoleVampire: {
		name: "Vampire", team: TeamVampires, wakes: true, targets: 1, effect: EffectVampired,
		blurb: "Bites at night with the other vampires. Immune to werewolves.",
	},
	RoleVillager: {
		name: "Villager", team: TeamVillage,
		blurb: "No special powers.",
	},
	RoleWerewolf: {
		name: "Werewolf", team: TeamWerewolves, wakes: true, targets: 1, effect: EffectWolved,
		blurb: "Hunts a villager each night with the pack.",
	},
	RoleWitch: {
		name: "Witch", team: TeamVillage, wakes: true, targets: 2, effect: EffectWitchHealed, cancelable: true,
		blurb: "Has one healing and one killing potion.",
	},
	RoleWolfCub: {
		name: "Wolf Cub", team: TeamWerewolves, wakes: true, targets: 1, effect: EffectWolved,
		blurb: "If lynched, the pack takes two victims the next night.",
	},

	RoleCupid: {
		name: "Cupid", team: TeamVillage, passive: true, wakes: true, targets: 2, effect: EffectCupided, oneShot: true,
		blurb: "On the first night binds two sweethearts who die together.",
	},
	RoleCursed: {
		name: "Cursed", team: TeamVillage, passive: true,
		blurb: "Turns into a werewolf instead of dying when bitten.",
	},
	RoleDiseased: {
		name: "Diseased", team: TeamVillage, passive: true,
		blurb: "If killed by werewolves, they skip their next hunt.",
	},
	RoleDoppelganger: {
		name: "Doppelganger", team: TeamVillage, passive: true, wakes: true, targets: 1, effect: EffectDoppelganged, oneShot: true,
		blurb: "Picks a player on the first night and takes their role when they die.",
	},
	RoleHoodlum: {
		name: "Hoodlum", team: TeamVillage, passive: true, wakes: true, targets: 2, effect: EffectHoodlumed, oneShot: true,
		blurb: "Marks two players on the first night. Wins when both are dead.",
	},
	RoleHunter: {
		name: "Hunter", team: TeamVillage, passive: true,
		blurb: "When killed, takes one player down with them.",
	},
	RoleLycan: {
		name: "Lycan", team: TeamVillage, passive: true,
		blurb: "Looks like a werewolf to the Seer.",
	},
	RoleMadBomber: {
		name: "Mad Bomber", team: TeamVillage, passive: true,
		blurb: "When killed, both neighbors die too.",
	},
	RoleMason: {
		name: "Mason", team: TeamVillage, passive: true, wakes: true,
		blurb: "Learns the other Masons on the first night.",
	},
	RoleMayor: {
		name: "Mayor", team: TeamVillage, passive: true,
		blurb: "Their lynch vote counts twice.",
	},
	RolePrince: {
		name: "Prince", team: TeamVillage, passive: true,
		blurb: "Cannot be lynched.",
	},
	RolePacifist: {
		name: "Pacifist", team: TeamVillage, passive: true,
		blurb: "Prefers that nobody is lynched.",
	},
	RoleTanner: {
		name: "Tanner", team: TeamVillage, passive: true,
		blurb: "Wins if they die.",
	},
	RoleTroublemaker: {
		name: "Troublemaker", team: TeamVillage, passive: true, wakes: true, oneShot: true,
		question: "Will the Troublemaker use her ability?",
		blurb:    "Once per game makes the village lynch two players the next day.",
	},
	RoleToughGuy: {
		name: "Tough Guy", team: TeamVillage, passive: true,
		blurb: "Survives a werewolf bite for one more day.",
	},
	RoleVillageIdiot: {
		name: "Village Idiot", team: TeamVillage, passive: true,
		blurb: "Always votes to lynch.",
	},
}

// DefaultActivePool is the active-role deck a new game starts with.
var DefaultActivePool = []RoleKind{
	RoleAlfaWolf, RoleApprenticeSeer, RoleAuraSeer, RoleBodyguard, RoleCultLeader, RoleDrunk,
	RoleHuntress, RoleLoneWolf, RoleMinion, RoleMysticSeer, RoleOldHag, RolePriest, RolePI,
	RoleRevealer, RoleSeer, RoleSorceress, RoleSpellcaster, RoleVampire, RoleVampire, RoleVampire,
	RoleVillager, RoleVillager, RoleVillager, RoleWerewolf, RoleWerewolf, RoleWerewolf, RoleWitch,
	RoleWolfCub,
}

// DefaultPassivePool is the passive-role deck a new game starts with.
var DefaultPassivePool = []RoleKind{
	RoleCupid, RoleCursed, RoleDiseased, RoleDoppelganger, RoleHoodlum, RoleHunter, RoleLycan,
	RoleMadBomber, RoleMason, RoleMason, RoleMason, RoleMayor, RolePrince, RolePacifist, RoleTanner,
	RoleTroublemaker, RoleToughGuy, RoleVillager, RoleVillager, RoleVillager, RoleVillageIdiot,
}

// isWolfKind reports whether the kind hunts with the werewolf pack.
func isWolfKind(k RoleKind) bool {
	return k == RoleWerewolf || k == RoleLoneWolf || k == RoleWolfCub
}
