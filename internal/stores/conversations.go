package stores

import (
	"context"
	"slices"
	"time"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/remote"
	intsync "github.com/matheus3301/shiftsync/internal/sync"
)

// ConversationRow is the presentation view of one conversation.
type ConversationRow struct {
	model.Conversation
	Unread int `json:"unread"`
}

// Conversations mirrors the conversations a user takes part in, most recent
// message first.
type Conversations struct {
	*intsync.Collection[model.Conversation]
	viewer viewer
}

// NewConversations builds the store.
func NewConversations(deps Deps) *Conversations {
	c := &Conversations{}
	c.Collection = intsync.NewCollection(intsync.Config[model.Conversation]{
		Name:       NameConversations,
		Collection: remote.Conversations,
		Decode:     model.DecodeConversation,
		Derive:     sortByLastMessage,
	}, deps.Remote, deps.Bus, deps.Logger)
	return c
}

// Subscribe opens the query for conversations including viewerID.
func (c *Conversations) Subscribe(ctx context.Context, viewerID string) error {
	if viewerID == "" {
		return apperr.Invalid("viewer", "user id is required")
	}
	c.viewer.set(viewerID)
	return c.Collection.Subscribe(ctx, remote.Where("participantIds", remote.ArrayContains, viewerID))
}

// Rows returns the mirror with the viewer's unread counts.
func (c *Conversations) Rows() []ConversationRow {
	id := c.viewer.get()
	items := c.State().Items
	rows := make([]ConversationRow, len(items))
	for i, conv := range items {
		rows[i] = ConversationRow{Conversation: conv, Unread: conv.UnreadFor(id)}
	}
	return rows
}

// UnreadTotal sums the viewer's unread counts.
func (c *Conversations) UnreadTotal() int {
	total := 0
	for _, r := range c.Rows() {
		total += r.Unread
	}
	return total
}

// sortByLastMessage orders newest last message first; conversations with no
// message yet go last.
func sortByLastMessage(in []model.Conversation) []model.Conversation {
	slices.SortStableFunc(in, func(a, b model.Conversation) int {
		at, aok := lastAt(a)
		bt, bok := lastAt(b)
		switch {
		case aok && bok:
			return bt.Compare(at)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
	return in
}

func lastAt(c model.Conversation) (time.Time, bool) {
	if c.LastMessage == nil {
		return time.Time{}, false
	}
	return c.LastMessage.Timestamp.Time()
}
