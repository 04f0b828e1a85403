package sync

import (
	"slices"
	"strings"

	"github.com/matheus3301/chatflow/internal/chat"
)

// compareMessages orders by CreatedAt, breaking ties by id so the result
// does not depend on arrival order.
func compareMessages(a, b chat.Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// merge returns the ordered union of sets, keeping the first occurrence of
// each id.
func merge(sets ...[]chat.Message) []chat.Message {
	seen := make(map[string]bool)
	var out []chat.Message
	for _, set := range sets {
		for _, m := range set {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	slices.SortFunc(out, compareMessages)
	return out
}

func indexOf(ms []chat.Message, id string) int {
	return slices.IndexFunc(ms, func(m chat.Message) bool { return m.ID == id })
}

func remove(ms []chat.Message, id string) ([]chat.Message, bool) {
	i := indexOf(ms, id)
	if i < 0 {
		return ms, false
	}
	return slices.Delete(ms, i, i+1), true
}

func sameIDs(a, b []chat.Message) bool {
	return slices.EqualFunc(a, b, func(x, y chat.Message) bool { return x.ID == y.ID })
}
