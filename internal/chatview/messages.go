package chatview

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/johndosdos/synapse/internal/model"
)

// MessageList is a room's messages ordered by id with no duplicates. Push
// and poll both feed it, so dedup lives in one place.
type MessageList struct {
	msgs       []model.ChatMessage
	ids        map[int64]struct{}
	lastSeenID int64
}

func (l *MessageList) init() {
	if l.ids == nil {
		l.ids = make(map[int64]struct{})
	}
}

// Merge adds msg unless its id is already present. It reports whether the
// list changed.
func (l *MessageList) Merge(msg model.ChatMessage) bool {
	l.init()
	if _, ok := l.ids[msg.ID]; ok {
		return false
	}
	l.ids[msg.ID] = struct{}{}

	if msg.ID > l.lastSeenID {
		l.msgs = append(l.msgs, msg)
		l.lastSeenID = msg.ID
		return true
	}

	slog.Debug("out of order message", "id", msg.ID, "last_seen_id", l.lastSeenID)
	i := sort.Search(len(l.msgs), func(i int) bool { return l.msgs[i].ID > msg.ID })
	l.msgs = slices.Insert(l.msgs, i, msg)
	return true
}

// MergeAll merges every message of msgs and reports how many were new.
func (l *MessageList) MergeAll(msgs []model.ChatMessage) int {
	checkOrder(msgs)
	n := 0
	for _, m := range msgs {
		if l.Merge(m) {
			n++
		}
	}
	return n
}

// Replace discards the list and rebuilds it from msgs.
func (l *MessageList) Replace(msgs []model.ChatMessage) {
	l.Reset()
	l.MergeAll(msgs)
}

func (l *MessageList) Reset() {
	l.msgs = nil
	l.ids = nil
	l.lastSeenID = 0
}

// Messages returns a copy of the list.
func (l *MessageList) Messages() []model.ChatMessage {
	return slices.Clone(l.msgs)
}

func (l *MessageList) Len() int {
	return len(l.msgs)
}

// LastSeenID is the highest id in the list, or 0 when empty.
func (l *MessageList) LastSeenID() int64 {
	return l.lastSeenID
}

func checkOrder(msgs []model.ChatMessage) {
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			slog.Warn("history is not in ascending id order",
				"index", i,
				"id", msgs[i].ID,
				"previous_id", msgs[i-1].ID)
			return
		}
	}
}
