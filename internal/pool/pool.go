package pool

import "sync"

// Entry is a waiting client's identity snapshot plus its connection.
type Entry struct {
	ConnID    string
	UserID    string
	Username  string
	AvatarRef string
}

// Pair is the result of a completed pairing, in insertion order.
type Pair struct {
	First  Entry
	Second Entry
}

// Pool holds the clients currently seeking an opponent, in insertion order.
// Pairing evaluation and removal are atomic with respect to concurrent
// Enqueue/Remove calls; no two operations observe an inconsistent pool.
type Pool struct {
	mu      sync.Mutex
	order   []string
	entries map[string]Entry
}

func New() *Pool {
	return &Pool{
		entries: make(map[string]Entry),
	}
}

// Enqueue adds the client to the waiting set. When at least two distinct
// identities are waiting, the earliest-inserted client is paired with the
// next distinct-identity client in insertion order and both are removed.
// A nil pair means the caller keeps waiting.
func (that *Pool) Enqueue(entry Entry) (*Pair, int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.entries[entry.ConnID]; !ok {
		that.order = append(that.order, entry.ConnID)
	}
	that.entries[entry.ConnID] = entry

	pair := that.matchEarliest()

	return pair, len(that.entries)
}

// matchEarliest pairs the head of the queue with the first later entry that
// carries a different user identity. Caller must hold the pool mutex.
func (that *Pool) matchEarliest() *Pair {
	if len(that.order) < 2 {
		return nil
	}

	first := that.entries[that.order[0]]

	for _, connID := range that.order[1:] {
		second := that.entries[connID]
		if second.UserID == first.UserID {
			continue
		}

		that.remove(first.ConnID)
		that.remove(second.ConnID)

		return &Pair{First: first, Second: second}
	}

	return nil
}

// Remove drops the entry for the given connection if present. It is a
// no-op otherwise, so cancel and disconnect paths can call it blindly.
func (that *Pool) Remove(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.remove(connID)
}

// remove deletes one entry. Caller must hold the pool mutex.
func (that *Pool) remove(connID string) {
	if _, ok := that.entries[connID]; !ok {
		return
	}

	delete(that.entries, connID)

	for i, id := range that.order {
		if id == connID {
			that.order = append(that.order[:i], that.order[i+1:]...)
			break
		}
	}
}

// Len reports how many clients are currently waiting.
func (that *Pool) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.entries)
}
