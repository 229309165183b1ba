// Package memstore is an in-memory repository.Store. Transactions work on a copy of
// the state that replaces the committed state only when the callback succeeds.
// Writers are serialized by a single mutex.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/repository"
)

type row[T model.Record] struct {
	seq int
	v   T
}

type rows[T model.Record] map[uuid.UUID]row[T]

func (r rows[T]) clone() rows[T] {
	out := make(rows[T], len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type state struct {
	seq           int
	users         rows[model.User]
	stockCounts   rows[model.StockCount]
	areas         rows[model.Area]
	assignments   rows[model.Assignment]
	sessions      rows[model.CountSession]
	items         rows[model.CountItem]
	comparisons   rows[model.Comparison]
	discrepancies rows[model.Discrepancy]
}

func newState() state {
	return state{
		users:         rows[model.User]{},
		stockCounts:   rows[model.StockCount]{},
		areas:         rows[model.Area]{},
		assignments:   rows[model.Assignment]{},
		sessions:      rows[model.CountSession]{},
		items:         rows[model.CountItem]{},
		comparisons:   rows[model.Comparison]{},
		discrepancies: rows[model.Discrepancy]{},
	}
}

func (s state) clone() state {
	return state{
		seq:           s.seq,
		users:         s.users.clone(),
		stockCounts:   s.stockCounts.clone(),
		areas:         s.areas.clone(),
		assignments:   s.assignments.clone(),
		sessions:      s.sessions.clone(),
		items:         s.items.clone(),
		comparisons:   s.comparisons.clone(),
		discrepancies: s.discrepancies.clone(),
	}
}

// Hooks let tests inject failures.
type Hooks struct {
	// BeforeAreaUpdate runs before every versioned area write; a non-nil error aborts it.
	BeforeAreaUpdate func(a model.Area) error
}

type Store struct {
	mu    sync.Mutex
	state state
	hooks Hooks
}

func New() *Store {
	return &Store{state: newState()}
}

// SetHooks replaces the test hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

func (s *Store) handle() handle { return handle{store: s} }

func (s *Store) Users() repository.UserRepository { return userRepo{s.handle().users()} }
func (s *Store) StockCounts() repository.StockCountRepository { return stockCountRepo{s.handle().stockCounts()} }
func (s *Store) Areas() repository.AreaRepository { return areaRepo{s.handle().areas()} }
func (s *Store) Assignments() repository.AssignmentRepository { return assignmentRepo{s.handle().assignments()} }
func (s *Store) Sessions() repository.SessionRepository { return sessionRepo{s.handle().sessions()} }
func (s *Store) Items() repository.ItemRepository { return itemRepo{s.handle().items()} }
func (s *Store) Comparisons() repository.ComparisonRepository { return comparisonRepo{s.handle().comparisons()} }
func (s *Store) Discrepancies() repository.DiscrepancyRepository {
	return discrepancyRepo{s.handle().discrepancies()}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&txStore{h: handle{store: s, tx: &next}}); err != nil {
		return err
	}
	s.state = next
	return nil
}

// handle routes a repository call either to an open transaction or to the committed state.
type handle struct {
	store *Store
	tx    *state
}

func (h handle) read(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return fn(&h.store.state)
}

func (h handle) write(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	next := h.store.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	h.store.state = next
	return nil
}

type txStore struct{ h handle }

func (t *txStore) Users() repository.UserRepository { return userRepo{t.h.users()} }
func (t *txStore) StockCounts() repository.StockCountRepository { return stockCountRepo{t.h.stockCounts()} }
func (t *txStore) Areas() repository.AreaRepository { return areaRepo{t.h.areas()} }
func (t *txStore) Assignments() repository.AssignmentRepository { return assignmentRepo{t.h.assignments()} }
func (t *txStore) Sessions() repository.SessionRepository { return sessionRepo{t.h.sessions()} }
func (t *txStore) Items() repository.ItemRepository { return itemRepo{t.h.items()} }
func (t *txStore) Comparisons() repository.ComparisonRepository { return comparisonRepo{t.h.comparisons()} }
func (t *txStore) Discrepancies() repository.DiscrepancyRepository {
	return discrepancyRepo{t.h.discrepancies()}
}

// WithTx inside a transaction joins it.
func (t *txStore) WithTx(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

// table is the generic CRUD over one entity map.
type table[T model.Record] struct {
	h    handle
	pick func(st *state) rows[T]
	less func(a, b T) bool
}

func (t table[T]) Create(_ context.Context, v *T) error {
	return t.h.write(func(st *state) error {
		m := t.pick(st)
		id := (*v).RecordID()
		if _, ok := m[id]; ok {
			return repository.ErrDuplicate
		}
		st.seq++
		m[id] = row[T]{seq: st.seq, v: *v}
		return nil
	})
}

func (t table[T]) FindByID(_ context.Context, id uuid.UUID) (*T, error) {
	var out T
	err := t.h.read(func(st *state) error {
		r, ok := t.pick(st)[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = r.v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t table[T]) Update(_ context.Context, v *T) error {
	return t.h.write(func(st *state) error {
		m := t.pick(st)
		id := (*v).RecordID()
		r, ok := m[id]
		if !ok {
			return repository.ErrNotFound
		}
		r.v = *v
		m[id] = r
		return nil
	})
}

func (t table[T]) Delete(_ context.Context, id uuid.UUID) error {
	return t.h.write(func(st *state) error {
		m := t.pick(st)
		if _, ok := m[id]; !ok {
			return repository.ErrNotFound
		}
		delete(m, id)
		return nil
	})
}

func (t table[T]) where(match func(T) bool) ([]T, error) {
	var out []row[T]
	err := t.h.read(func(st *state) error {
		for _, r := range t.pick(st) {
			if match == nil || match(r.v) {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if t.less != nil {
			if t.less(out[i].v, out[j].v) {
				return true
			}
			if t.less(out[j].v, out[i].v) {
				return false
			}
		}
		return out[i].seq < out[j].seq
	})
	vs := make([]T, len(out))
	for i, r := range out {
		vs[i] = r.v
	}
	return vs, nil
}

func (t table[T]) deleteWhere(match func(T) bool) error {
	return t.h.write(func(st *state) error {
		m := t.pick(st)
		for id, r := range m {
			if match(r.v) {
				delete(m, id)
			}
		}
		return nil
	})
}

func (h handle) users() table[model.User] {
	return table[model.User]{h: h, pick: func(st *state) rows[model.User] { return st.users },
		less: func(a, b model.User) bool { return a.Email < b.Email }}
}

func (h handle) stockCounts() table[model.StockCount] {
	return table[model.StockCount]{h: h, pick: func(st *state) rows[model.StockCount] { return st.stockCounts },
		less: func(a, b model.StockCount) bool {
			if !a.Date.Equal(b.Date) {
				return a.Date.After(b.Date)
			}
			return a.Name < b.Name
		}}
}

func (h handle) areas() table[model.Area] {
	return table[model.Area]{h: h, pick: func(st *state) rows[model.Area] { return st.areas },
		less: func(a, b model.Area) bool { return a.Name < b.Name }}
}

func (h handle) assignments() table[model.Assignment] {
	return table[model.Assignment]{h: h, pick: func(st *state) rows[model.Assignment] { return st.assignments },
		less: func(a, b model.Assignment) bool {
			if !a.AssignedAt.Equal(b.AssignedAt) {
				return a.AssignedAt.Before(b.AssignedAt)
			}
			return a.ID.String() < b.ID.String()
		}}
}

func (h handle) sessions() table[model.CountSession] {
	return table[model.CountSession]{h: h, pick: func(st *state) rows[model.CountSession] { return st.sessions },
		less: func(a, b model.CountSession) bool { return a.StartTime.Before(b.StartTime) }}
}

func (h handle) items() table[model.CountItem] {
	return table[model.CountItem]{h: h, pick: func(st *state) rows[model.CountItem] { return st.items }}
}

func (h handle) comparisons() table[model.Comparison] {
	return table[model.Comparison]{h: h, pick: func(st *state) rows[model.Comparison] { return st.comparisons },
		less: func(a, b model.Comparison) bool { return a.ProcessedAt.Before(b.ProcessedAt) }}
}

func (h handle) discrepancies() table[model.Discrepancy] {
	return table[model.Discrepancy]{h: h, pick: func(st *state) rows[model.Discrepancy] { return st.discrepancies },
		less: func(a, b model.Discrepancy) bool {
			if a.SKU != b.SKU {
				return a.SKU < b.SKU
			}
			return a.ItemNumber < b.ItemNumber
		}}
}

type userRepo struct{ table[model.User] }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	return r.h.write(func(st *state) error {
		if _, ok := st.users[u.ID]; ok || emailTaken(st, u.Email, u.ID) {
			return repository.ErrDuplicate
		}
		st.seq++
		st.users[u.ID] = row[model.User]{seq: st.seq, v: *u}
		return nil
	})
}

func (r userRepo) Update(_ context.Context, u *model.User) error {
	return r.h.write(func(st *state) error {
		cur, ok := st.users[u.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if emailTaken(st, u.Email, u.ID) {
			return repository.ErrDuplicate
		}
		cur.v = *u
		st.users[u.ID] = cur
		return nil
	})
}

func emailTaken(st *state, email string, self uuid.UUID) bool {
	for id, r := range st.users {
		if id != self && strings.EqualFold(r.v.Email, email) {
			return true
		}
	}
	return false
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	found, _ := r.where(func(u model.User) bool { return strings.EqualFold(u.Email, email) })
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}

func (r userRepo) List(context.Context) ([]model.User, error) { return r.where(nil) }

type stockCountRepo struct{ table[model.StockCount] }

func (r stockCountRepo) List(context.Context) ([]model.StockCount, error) { return r.where(nil) }

type areaRepo struct{ table[model.Area] }

func (r areaRepo) ListByStockCount(_ context.Context, stockCountID uuid.UUID) ([]model.Area, error) {
	return r.where(func(a model.Area) bool { return a.StockCountID == stockCountID })
}

func (r areaRepo) ListByStatus(_ context.Context, status model.AreaStatus) ([]model.Area, error) {
	return r.where(func(a model.Area) bool { return a.Status == status })
}

func (r areaRepo) Update(_ context.Context, a *model.Area) error {
	return r.h.write(func(st *state) error {
		cur, ok := st.areas[a.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if hook := r.h.store.hooks.BeforeAreaUpdate; hook != nil {
			if err := hook(*a); err != nil {
				return err
			}
		}
		if cur.v.Version != a.Version {
			return repository.ErrVersionConflict
		}
		a.Version++
		cur.v = *a
		st.areas[a.ID] = cur
		return nil
	})
}

type assignmentRepo struct{ table[model.Assignment] }

func (r assignmentRepo) ListByArea(_ context.Context, areaID uuid.UUID) ([]model.Assignment, error) {
	return r.where(func(a model.Assignment) bool { return a.AreaID == areaID })
}

func (r assignmentRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Assignment, error) {
	return r.where(func(a model.Assignment) bool { return a.UserID == userID })
}

type sessionRepo struct{ table[model.CountSession] }

func (r sessionRepo) ListByAssignment(_ context.Context, assignmentID uuid.UUID) ([]model.CountSession, error) {
	return r.where(func(s model.CountSession) bool { return s.AssignmentID == assignmentID })
}

type itemRepo struct{ table[model.CountItem] }

func (r itemRepo) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.CountItem, error) {
	return r.where(func(i model.CountItem) bool { return i.SessionID == sessionID })
}

func (r itemRepo) ListByItemNumber(_ context.Context, itemNumber string) ([]model.CountItem, error) {
	return r.where(func(i model.CountItem) bool { return i.ItemNumber == itemNumber })
}

func (r itemRepo) ListBySKU(_ context.Context, sku string) ([]model.CountItem, error) {
	return r.where(func(i model.CountItem) bool { return i.SKU == sku })
}

func (r itemRepo) DeleteBySession(_ context.Context, sessionID uuid.UUID) error {
	return r.deleteWhere(func(i model.CountItem) bool { return i.SessionID == sessionID })
}

type comparisonRepo struct{ table[model.Comparison] }

func (r comparisonRepo) ListByArea(_ context.Context, areaID uuid.UUID) ([]model.Comparison, error) {
	return r.where(func(c model.Comparison) bool { return c.AreaID == areaID })
}

type discrepancyRepo struct{ table[model.Discrepancy] }

func (r discrepancyRepo) ListByComparison(_ context.Context, comparisonID uuid.UUID) ([]model.Discrepancy, error) {
	return r.where(func(d model.Discrepancy) bool { return d.ComparisonID == comparisonID })
}

func (r discrepancyRepo) DeleteByComparison(_ context.Context, comparisonID uuid.UUID) error {
	return r.deleteWhere(func(d model.Discrepancy) bool { return d.ComparisonID == comparisonID })
}

var _ repository.Store = (*Store)(nil)
var _ repository.Store = (*txStore)(nil)
