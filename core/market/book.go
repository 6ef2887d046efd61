package market

import (
	"container/heap"
	"sort"

	"github.com/cnergy/cnergy/core/model"
)

// entry wraps an order in a side queue. Cancellation and expiry mark the
// entry dead instead of searching the heap; dead entries are discarded lazily
// when they surface at the top.
type entry struct {
	order *model.Order
	dead  bool
}

// sideQueue is a price-time priority queue over one side of the book. Asks
// rank price ascending, bids price descending; ties rank by id ascending, so
// equal prices match strictly first-in-first-out.
type sideQueue struct {
	entries []*entry
	ask     bool
}

func (q *sideQueue) Len() int { return len(q.entries) }

func (q *sideQueue) Less(i, j int) bool {
	a, b := q.entries[i].order, q.entries[j].order
	if a.Price != b.Price {
		if q.ask {
			return a.Price < b.Price
		}
		return a.Price > b.Price
	}
	return a.ID < b.ID
}

func (q *sideQueue) Swap(i, j int) { q.entries[i], q.entries[j] = q.entries[j], q.entries[i] }

func (q *sideQueue) Push(x any) { q.entries = append(q.entries, x.(*entry)) }

func (q *sideQueue) Pop() any {
	old := q.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	q.entries = old[:n-1]
	return e
}

// prune discards dead entries from the top of the queue.
func (q *sideQueue) prune() {
	for len(q.entries) > 0 && q.entries[0].dead {
		heap.Pop(q)
	}
}

// Book is the authoritative order store plus the two side queues used by the
// continuous matcher. It is not safe for concurrent use: the owning engine
// serializes all access.
type Book struct {
	orders map[int64]*model.Order
	index  map[int64]*entry
	bids   *sideQueue
	asks   *sideQueue
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{
		orders: make(map[int64]*model.Order),
		index:  make(map[int64]*entry),
		bids:   &sideQueue{},
		asks:   &sideQueue{ask: true},
	}
}

func (b *Book) queue(side model.Side) *sideQueue {
	if side == model.Sell {
		return b.asks
	}
	return b.bids
}

// Add stores the order and inserts it into its side queue.
func (b *Book) Add(o *model.Order) {
	e := &entry{order: o}
	b.orders[o.ID] = o
	b.index[o.ID] = e
	heap.Push(b.queue(o.Side), e)
}

// Get returns the live order for id.
func (b *Book) Get(id int64) (*model.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Remove destroys the order. The queue entry is only marked dead; the heap
// drops it lazily. Removing an unknown id is a no-op and reports false.
func (b *Book) Remove(id int64) bool {
	e, ok := b.index[id]
	if !ok {
		return false
	}
	e.dead = true
	delete(b.index, id)
	delete(b.orders, id)
	return true
}

// Best returns the highest-priority live order on the given side, or nil.
func (b *Book) Best(side model.Side) *model.Order {
	q := b.queue(side)
	q.prune()
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0].order
}

// Expire removes every live order with ExpiryTick at or before tick and
// returns them.
func (b *Book) Expire(tick int64) []*model.Order {
	var expired []*model.Order
	for id, o := range b.orders {
		if o.ExpiryTick <= tick {
			expired = append(expired, o)
			b.index[id].dead = true
			delete(b.index, id)
			delete(b.orders, id)
		}
	}
	// map iteration order is random; expiry notifications go out in id order
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired
}

// Depth reports the number of live orders on the given side.
func (b *Book) Depth(side model.Side) int {
	n := 0
	for _, o := range b.orders {
		if o.Side == side {
			n++
		}
	}
	return n
}

// Orders returns a copy of the live orders on one side in priority order.
func (b *Book) Orders(side model.Side) []model.Order {
	var out []model.Order
	for _, o := range b.orders {
		if o.Side == side {
			out = append(out, *o)
		}
	}
	ask := side == model.Sell
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			if ask {
				return out[i].Price < out[j].Price
			}
			return out[i].Price > out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out
}
