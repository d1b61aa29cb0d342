// Package rotation walks an ordered list of interchangeable credentials,
// moving to the next one when the current is exhausted (rate limited).
package rotation

import "sync"

// Rotation remembers which item last worked. Each caller walks the list with
// its own Cursor, so concurrent walks never move each other. Safe for
// concurrent use; the zero value has no items.
type Rotation[T any] struct {
	mu        sync.Mutex
	items     []T
	preferred int
}

func New[T any](items ...T) *Rotation[T] {
	cp := make([]T, len(items))
	copy(cp, items)
	return &Rotation[T]{items: cp}
}

// Cursor starts a walk at the preferred item. Items are immutable after New,
// so the cursor reads them without locking.
func (r *Rotation[T]) Cursor() *Cursor[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Cursor[T]{r: r, start: r.preferred}
}

// Cursor is one caller's position. It is not safe for concurrent use.
type Cursor[T any] struct {
	r     *Rotation[T]
	start int
	step  int
}

func (c *Cursor[T]) index() int { return (c.start + c.step) % len(c.r.items) }

// Item returns the item under the cursor. ok is false when the list is empty.
func (c *Cursor[T]) Item() (item T, ok bool) {
	if len(c.r.items) == 0 {
		return item, false
	}
	return c.r.items[c.index()], true
}

// Next moves to the following item, wrapping around. It returns false, and
// stays put, once every item has been visited by this cursor.
func (c *Cursor[T]) Next() bool {
	if c.step+1 >= len(c.r.items) {
		return false
	}
	c.step++
	return true
}

// Commit makes the current item the starting point of later cursors.
func (c *Cursor[T]) Commit() {
	if len(c.r.items) == 0 {
		return
	}
	c.r.mu.Lock()
	c.r.preferred = c.index()
	c.r.mu.Unlock()
}
