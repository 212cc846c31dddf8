package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ChatKind tells day chats from team chats.
type ChatKind int

const (
	ChatDay ChatKind = iota
	ChatWerewolves
	ChatVampires
)

func (k ChatKind) String() string {
	switch k {
	case ChatWerewolves:
		return "werewolves"
	case ChatVampires:
		return "vampires"
	default:
		return "day"
	}
}

// Message is one chat line.
type Message struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Chat is a transcript open to a fixed set of members.
type Chat struct {
	ID       string
	Kind     ChatKind
	Cycle    int
	Members  []string
	Messages []Message
}

func newChat(kind ChatKind, cycle int, members []string) *Chat {
	return &Chat{
		ID:      uuid.NewString(),
		Kind:    kind,
		Cycle:   cycle,
		Members: members,
	}
}

// Post appends a line from sender, who must be a member.
func (c *Chat) Post(sender, text string, at time.Time) error {
	if !slices.Contains(c.Members, sender) {
		return fmt.Errorf("%s is not in chat %s: %w", sender, c.ID, ErrNotFound)
	}
	if text == "" {
		return fmt.Errorf("empty message: %w", ErrInvalidState)
	}
	c.Messages = append(c.Messages, Message{Sender: sender, Text: text, At: at})
	return nil
}
