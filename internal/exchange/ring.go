package exchange

// slotState tracks ownership of a single buffer slot.
//
// Transitions are strictly:
//
//	empty → filling → occupied → draining → empty
//
// filling and draining mark a slot whose handle has been issued but not
// yet redeemed. Both phases happen under the exchange mutex, so they are
// never observable by another goroutine; they exist so that a misrouted
// handle fails loudly instead of corrupting the buffer.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotFilling
	slotOccupied
	slotDraining
)

// slotHandle identifies a reserved slot. Valid only between a reserve
// call and the matching commit/take.
type slotHandle int

type slot[T any] struct {
	state slotState
	item  T
}

// ring is a fixed-capacity ring of slots with head/tail indices mod C.
//
// ring never blocks and performs no synchronization of its own: every
// method must be called with the owning Exchange's mutex held. The
// blocking and counting logic lives entirely in the Exchange.
type ring[T any] struct {
	slots    []slot[T]
	head     int // next occupied slot to drain
	tail     int // next empty slot to fill
	occupied int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{slots: make([]slot[T], capacity)}
}

// reserveEmpty claims the next empty slot for a producer.
// Returns false if no empty slot exists.
func (r *ring[T]) reserveEmpty() (slotHandle, bool) {
	if r.slots[r.tail].state != slotEmpty {
		return -1, false
	}
	h := slotHandle(r.tail)
	r.slots[r.tail].state = slotFilling
	r.tail = (r.tail + 1) % len(r.slots)
	return h, true
}

// commit stores an item in a slot previously returned by reserveEmpty.
func (r *ring[T]) commit(h slotHandle, item T) {
	s := &r.slots[h]
	if s.state != slotFilling {
		panic("exchange: commit on a slot that was not reserved empty")
	}
	s.item = item
	s.state = slotOccupied
	r.occupied++
}

// reserveFull claims the oldest occupied slot for a consumer.
// Returns false if no occupied slot exists.
func (r *ring[T]) reserveFull() (slotHandle, bool) {
	if r.slots[r.head].state != slotOccupied {
		return -1, false
	}
	h := slotHandle(r.head)
	r.slots[r.head].state = slotDraining
	r.head = (r.head + 1) % len(r.slots)
	return h, true
}

// take removes and returns the item from a slot previously returned by
// reserveFull, freeing the slot for reuse. The slot is zeroed so the
// ring does not retain references past delivery.
func (r *ring[T]) take(h slotHandle) T {
	s := &r.slots[h]
	if s.state != slotDraining {
		panic("exchange: take on a slot that was not reserved full")
	}
	item := s.item
	var zero T
	s.item = zero
	s.state = slotEmpty
	r.occupied--
	return item
}

// len returns the number of occupied slots. Slots in the filling or
// draining phase are not counted; their items are owned by the goroutine
// holding the handle.
func (r *ring[T]) len() int {
	return r.occupied
}

func (r *ring[T]) cap() int {
	return len(r.slots)
}
