// Package memory is an in-process storage backend implementing the slot and
// swap request repositories and their transactions.
//
// Stored values are immutable: a commit swaps in fresh copies, so readers only
// hold the map lock long enough to fetch a pointer. Commits lock the entries
// they touch in sorted key order and never wait on an entry lock while holding
// the map lock, so commits over disjoint slots proceed in parallel.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	slotserrors "slotswap/internal/slots/errors"
	swapserrors "slotswap/internal/swaps/errors"
	"slotswap/pkg/db"
	"slotswap/pkg/model"
)

type Store struct {
	mu       sync.RWMutex
	slots    map[string]*model.Slot
	requests map[string]*storedRequest
	// pending maps a requested slot ID to its PENDING request ID.
	pending map[string]string
	locks   map[string]*sync.Mutex
	seq     atomic.Int64
	now     func() time.Time
}

type storedRequest struct {
	req *model.SwapRequest
	seq int64
}

func NewStore() *Store {
	return &Store{
		slots:    make(map[string]*model.Slot),
		requests: make(map[string]*storedRequest),
		pending:  make(map[string]string),
		locks:    make(map[string]*sync.Mutex),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// --- Transactions ---

type txKey struct{}

type txn struct {
	mu  sync.Mutex
	ops []op
}

type transactionManager struct {
	store *Store
}

func (s *Store) TransactionManager() db.TransactionManager {
	return &transactionManager{store: s}
}

// ExecuteTransaction buffers writes issued through the ctx passed to fn and
// applies them all at once when fn returns nil. Preconditions of buffered
// writes are checked at commit, so a lost race surfaces from this call.
func (m *transactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if _, ok := ctx.Value(txKey{}).(*txn); ok {
		return fn(ctx)
	}

	tx := &txn{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.store.commit(tx.ops)
}

// write either buffers o in the ctx transaction or commits it on its own.
func (s *Store) write(ctx context.Context, o op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := ctx.Value(txKey{}).(*txn); ok {
		tx.mu.Lock()
		tx.ops = append(tx.ops, o)
		tx.mu.Unlock()
		return nil
	}
	return s.commit([]op{o})
}

// --- Commit ---

type opKind int

const (
	opSlotCreate opKind = iota
	opSlotDetails
	opSlotTransition
	opSlotDelete
	opRequestCreate
	opRequestClose
)

type op struct {
	kind opKind

	slot            *model.Slot
	slotID          string
	expectedVersion int64
	transition      model.SlotTransition
	updatedAt       time.Time

	req       *model.SwapRequest
	requestID string
	outcome   model.SwapStatus
	closedAt  time.Time
}

func slotKey(id string) string    { return "slot/" + id }
func requestKey(id string) string { return "request/" + id }
func pendingKey(id string) string { return "pending/" + id }

func (s *Store) keysFor(ops []op) ([]string, error) {
	set := make(map[string]struct{})
	for _, o := range ops {
		switch o.kind {
		case opSlotCreate:
			set[slotKey(o.slot.ID)] = struct{}{}
		case opSlotDetails, opSlotTransition, opSlotDelete:
			set[slotKey(o.slotID)] = struct{}{}
		case opRequestCreate:
			set[requestKey(o.req.ID)] = struct{}{}
			set[pendingKey(o.req.RequestedSlotID)] = struct{}{}
		case opRequestClose:
			s.mu.RLock()
			stored, ok := s.requests[o.requestID]
			s.mu.RUnlock()
			if !ok {
				return nil, swapserrors.ErrNotFound
			}
			set[requestKey(o.requestID)] = struct{}{}
			set[pendingKey(stored.req.RequestedSlotID)] = struct{}{}
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) lockKeys(keys []string) func() {
	held := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		s.mu.Lock()
		l, ok := s.locks[k]
		if !ok {
			l = &sync.Mutex{}
			s.locks[k] = l
		}
		s.mu.Unlock()

		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// staged is the post-commit view of every entry the ops touch.
type staged struct {
	slots    map[string]*model.Slot
	requests map[string]*storedRequest
	pending  map[string]string
}

func (s *Store) commit(ops []op) error {
	if len(ops) == 0 {
		return nil
	}

	keys, err := s.keysFor(ops)
	if err != nil {
		return err
	}
	unlock := s.lockKeys(keys)
	defer unlock()

	st := staged{
		slots:    make(map[string]*model.Slot),
		requests: make(map[string]*storedRequest),
		pending:  make(map[string]string),
	}

	// Entries we hold locks for cannot change under us; the read lock only
	// guards the maps themselves.
	s.mu.RLock()
	for _, k := range keys {
		kind, id, _ := strings.Cut(k, "/")
		switch kind {
		case "slot":
			st.slots[id] = s.slots[id]
		case "request":
			st.requests[id] = s.requests[id]
		case "pending":
			st.pending[id] = s.pending[id]
		}
	}
	s.mu.RUnlock()

	for _, o := range ops {
		if err := s.stage(&st, o); err != nil {
			return err
		}
	}

	s.mu.Lock()
	for id, slot := range st.slots {
		if slot == nil {
			delete(s.slots, id)
		} else {
			s.slots[id] = slot
		}
	}
	for id, stored := range st.requests {
		if stored != nil {
			s.requests[id] = stored
		}
	}
	for slotID, reqID := range st.pending {
		if reqID == "" {
			delete(s.pending, slotID)
		} else {
			s.pending[slotID] = reqID
		}
	}
	s.mu.Unlock()

	return nil
}

func (s *Store) stage(st *staged, o op) error {
	switch o.kind {
	case opSlotCreate:
		if st.slots[o.slot.ID] != nil {
			return slotserrors.ErrAlreadyExists
		}
		st.slots[o.slot.ID] = o.slot.Clone()

	case opSlotDetails:
		cur := st.slots[o.slotID]
		if cur == nil {
			return slotserrors.ErrNotFound
		}
		if cur.Version != o.expectedVersion || cur.Status == model.SlotSwapPending {
			return slotserrors.ErrVersionConflict
		}
		next := cur.Clone()
		next.Title = o.slot.Title
		next.StartTime = o.slot.StartTime
		next.EndTime = o.slot.EndTime
		next.UpdatedAt = o.updatedAt
		next.Version++
		st.slots[o.slotID] = next

	case opSlotTransition:
		cur := st.slots[o.slotID]
		if cur == nil {
			return slotserrors.ErrNotFound
		}
		if cur.Version != o.expectedVersion {
			return slotserrors.ErrVersionConflict
		}
		next := cur.Clone()
		next.Status = o.transition.Status
		if o.transition.Owner != "" {
			next.Owner = o.transition.Owner
		}
		next.UpdatedAt = o.updatedAt
		next.Version++
		st.slots[o.slotID] = next

	case opSlotDelete:
		cur := st.slots[o.slotID]
		if cur == nil {
			return slotserrors.ErrNotFound
		}
		if cur.Version != o.expectedVersion {
			return slotserrors.ErrVersionConflict
		}
		st.slots[o.slotID] = nil

	case opRequestCreate:
		if st.requests[o.req.ID] != nil {
			return swapserrors.ErrAlreadyExists
		}
		if o.req.Status == model.SwapPending {
			if st.pending[o.req.RequestedSlotID] != "" {
				return swapserrors.ErrDuplicatePending
			}
			st.pending[o.req.RequestedSlotID] = o.req.ID
		}
		st.requests[o.req.ID] = &storedRequest{req: o.req.Clone(), seq: s.seq.Add(1)}

	case opRequestClose:
		cur := st.requests[o.requestID]
		if cur == nil {
			return swapserrors.ErrNotFound
		}
		if cur.req.Status != model.SwapPending {
			return swapserrors.ErrNotPending
		}
		next := cur.req.Clone()
		next.Status = o.outcome
		closedAt := o.closedAt
		next.ClosedAt = &closedAt
		next.UpdatedAt = o.closedAt
		st.requests[o.requestID] = &storedRequest{req: next, seq: cur.seq}
		if st.pending[next.RequestedSlotID] == next.ID {
			st.pending[next.RequestedSlotID] = ""
		}
	}
	return nil
}
