package tracker

import (
	"math/rand"

	"github.com/google/uuid"
)

// Subscribe registers for state updates. The channel holds at most one
// pending state; a slow reader only ever sees the latest one.
func (t *Tracker) Subscribe() (string, <-chan State) {
	id := uuid.NewString()
	ch := make(chan State, 1)

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if t.subsClosed {
		close(ch)
		return id, ch
	}
	t.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (t *Tracker) Unsubscribe(id string) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if ch, ok := t.subs[id]; ok {
		close(ch)
		delete(t.subs, id)
	}
}

func (t *Tracker) publish(s State) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// Drop the stale pending state and replace it.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func defaultRand() *rand.Rand {
	return rand.New(rand.NewSource(rand.Int63()))
}
