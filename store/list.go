package store

import "fmt"

// List is an intrusive doubly linked list threaded through Store objects
// (head = oldest / least recently used, tail = newest). The zero List is
// empty. A policy may keep several lists over one Store; an object is
// linked into at most one of them.
type List struct {
	head, tail Handle
	n          int
}

// Head returns the first handle or Nil.
func (l *List) Head() Handle { return l.head }

// Tail returns the last handle or Nil.
func (l *List) Tail() Handle { return l.tail }

// Len returns the number of linked objects.
func (l *List) Len() int { return l.n }

// Next returns the successor of h in its list, or Nil.
func (s *Store) Next(h Handle) Handle { return s.objs[h].next }

// Prev returns the predecessor of h in its list, or Nil.
func (s *Store) Prev(h Handle) Handle { return s.objs[h].prev }

// Append links h at the tail of l in O(1).
func (s *Store) Append(l *List, h Handle) {
	o := &s.objs[h]
	o.prev = l.tail
	o.next = Nil
	if l.tail != Nil {
		s.objs[l.tail].next = h
	}
	l.tail = h
	if l.head == Nil {
		l.head = h
	}
	o.linked = true
	l.n++
}

// Prepend links h at the head of l in O(1).
func (s *Store) Prepend(l *List, h Handle) {
	o := &s.objs[h]
	o.prev = Nil
	o.next = l.head
	if l.head != Nil {
		s.objs[l.head].prev = h
	}
	l.head = h
	if l.tail == Nil {
		l.tail = h
	}
	o.linked = true
	l.n++
}

// Unlink removes h from l in O(1).
func (s *Store) Unlink(l *List, h Handle) {
	o := &s.objs[h]
	if o.prev != Nil {
		s.objs[o.prev].next = o.next
	}
	if o.next != Nil {
		s.objs[o.next].prev = o.prev
	}
	if l.head == h {
		l.head = o.next
	}
	if l.tail == h {
		l.tail = o.prev
	}
	o.prev, o.next = Nil, Nil
	o.linked = false
	l.n--
}

// MoveToTail moves a linked h to the tail of l in O(1).
func (s *Store) MoveToTail(l *List, h Handle) {
	if l.tail == h {
		return
	}
	s.Unlink(l, h)
	s.Append(l, h)
}

// MoveToHead moves a linked h to the head of l in O(1).
func (s *Store) MoveToHead(l *List, h Handle) {
	if l.head == h {
		return
	}
	s.Unlink(l, h)
	s.Prepend(l, h)
}

// CheckList walks l in both directions and verifies links and length.
func (s *Store) CheckList(l *List) error {
	n := 0
	prev := Nil
	for h := l.head; h != Nil; h = s.objs[h].next {
		o := &s.objs[h]
		if !o.linked {
			return fmt.Errorf("store: id %d in list but not marked linked", o.ID)
		}
		if o.prev != prev {
			return fmt.Errorf("store: id %d has broken prev link", o.ID)
		}
		prev = h
		n++
		if n > l.n {
			return fmt.Errorf("store: list longer than its length %d", l.n)
		}
	}
	if prev != l.tail {
		return fmt.Errorf("store: list tail mismatch")
	}
	if n != l.n {
		return fmt.Errorf("store: list has %d nodes, length says %d", n, l.n)
	}
	return nil
}
