package engine

// EventKind names an outbound notification.
type EventKind string

const (
	EventNightBegin    EventKind = "night-begin"
	EventDayBegin      EventKind = "day-begin"
	EventWake          EventKind = "wake"
	EventWakeGroup     EventKind = "wake-group"
	EventQuestion      EventKind = "question"
	EventNotice        EventKind = "notice"
	EventLynchResult   EventKind = "lynch-result"
	EventHunterRevenge EventKind = "hunter-revenge"
	EventChatUpdate    EventKind = "chat-update"
	EventVoteUpdate    EventKind = "vote-update"
	EventRolesAssigned EventKind = "roles-assigned"
	EventRoster        EventKind = "roster"
	EventGameOver      EventKind = "game-over"
	EventError         EventKind = "error"
)

// Event is one notification. An empty To means every subscriber of the game.
type Event struct {
	Kind    EventKind `json:"type"`
	GameID  string    `json:"game_id"`
	Cycle   int       `json:"cycle"`
	To      []string  `json:"-"`
	Payload any       `json:"payload,omitempty"`
}

// Notifier receives the engine's events in the order they happen.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// DaySummary is the payload of day-begin.
type DaySummary struct {
	Dead         []string `json:"dead"`
	Hagged       []string `json:"hagged,omitempty"`
	Silenced     []string `json:"silenced,omitempty"`
	Troublemaker bool     `json:"troublemaker,omitempty"`
	LynchVoteID  string   `json:"lynch_vote_id,omitempty"`
	ChatID       string   `json:"chat_id,omitempty"`
}

// WakePrompt is the payload of wake. TargetCount is zero for roles that only
// receive a narrative and answer with role-finished.
type WakePrompt struct {
	Role        string `json:"role"`
	Player      string `json:"player"`
	Prompt      string `json:"prompt"`
	TargetCount int    `json:"target_count"`
	Cancelable  bool   `json:"cancelable"`
}

// GroupWake is the payload of wake-group.
type GroupWake struct {
	Team        string   `json:"team"`
	Members     []string `json:"members"`
	Initiator   string   `json:"initiator"`
	ChatID      string   `json:"chat_id"`
	VoteID      string   `json:"vote_id"`
	TargetCount int      `json:"target_count"`
}

// QuestionPrompt is the payload of question.
type QuestionPrompt struct {
	Role   string `json:"role"`
	Player string `json:"player"`
	Prompt string `json:"prompt"`
}

// Notice is a private or public narrative line.
type Notice struct {
	Role string `json:"role,omitempty"`
	Text string `json:"text"`
}

// LynchResult is the payload of lynch-result.
type LynchResult struct {
	Eliminated []string `json:"eliminated"`
	Cancelled  bool     `json:"cancelled,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// HunterPrompt asks a dead Hunter for a revenge target.
type HunterPrompt struct {
	Hunter  string   `json:"hunter"`
	Targets []string `json:"targets"`
}

// ChatTranscript is the payload of chat-update.
type ChatTranscript struct {
	ChatID   string    `json:"chat_id"`
	Kind     string    `json:"kind"`
	Messages []Message `json:"messages"`
}

// VoteState is the payload of vote-update.
type VoteState struct {
	VoteID   string              `json:"vote_id"`
	Kind     string              `json:"kind"`
	Ballots  map[string][]string `json:"ballots"`
	Tally    map[string]int      `json:"tally"`
	Complete bool                `json:"complete"`
}

// RoleCard describes one dealt role.
type RoleCard struct {
	Name        string `json:"name"`
	Team        string `json:"team"`
	Description string `json:"description"`
}

// RoleAssignment is the payload of roles-assigned.
type RoleAssignment struct {
	Player  string   `json:"player"`
	Active  RoleCard `json:"active"`
	Passive RoleCard `json:"passive"`
}

// GameOver is the payload of game-over.
type GameOver struct {
	Winner string `json:"winner"`
}

// ErrorReport is the payload of error.
type ErrorReport struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func roleCard(r *Role) RoleCard {
	return RoleCard{Name: r.Name(), Team: r.Team.String(), Description: r.Kind.Describe()}
}
