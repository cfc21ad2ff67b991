package dashboard

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"ecmdash/internal/cases"
	"ecmdash/internal/logging"
)

type CaseReader interface {
	ListCases(ctx context.Context) ([]cases.Summary, error)
	GetCase(ctx context.Context, id int64) (cases.Detail, error)
}

// RowState is where a case row is in its expand cycle.
type RowState int

const (
	Collapsed RowState = iota
	Loading
	Expanded
)

func (s RowState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Expanded:
		return "expanded"
	default:
		return "collapsed"
	}
}

// Ticket identifies one detail fetch. Only the newest ticket may land.
type Ticket struct {
	ID  int64
	gen uint64
}

// Reconciler keeps the case list and at most one expanded detail.
type Reconciler struct {
	api CaseReader
	log *zap.Logger

	mu     sync.Mutex
	list   []cases.Summary
	active bool
	id     int64
	state  RowState
	detail *cases.Detail
	gen    uint64
}

func NewReconciler(api CaseReader, log *zap.Logger) *Reconciler {
	return &Reconciler{api: api, log: logging.OrNop(log), list: []cases.Summary{}}
}

// Refresh replaces the list with a fresh copy from the API. On failure the
// list becomes empty and the error is returned for callers that want it.
func (r *Reconciler) Refresh(ctx context.Context) error {
	list, err := r.api.ListCases(ctx)
	if err != nil {
		r.log.Warn("fetch cases", zap.Error(err))
		list = nil
	}
	if list == nil {
		list = []cases.Summary{}
	}
	r.mu.Lock()
	r.list = list
	r.mu.Unlock()
	return err
}

// Cases returns a copy of the current list. It is never nil.
func (r *Reconciler) Cases() []cases.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.list)
}

// Toggle handles a click on row id. Clicking the active row collapses it;
// any other row discards the held detail and starts loading. ok reports
// whether the returned ticket needs a fetch.
func (r *Reconciler) Toggle(id int64) (t Ticket, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.detail = nil
	if r.active && r.id == id {
		r.active = false
		r.state = Collapsed
		return Ticket{}, false
	}
	r.active = true
	r.id = id
	r.state = Loading
	return Ticket{ID: id, gen: r.gen}, true
}

// Resolve lands a fetch result. Results for a superseded ticket are dropped
// and Resolve reports false.
func (r *Reconciler) Resolve(t Ticket, d cases.Detail, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.id != t.ID || r.gen != t.gen {
		r.log.Debug("drop stale case detail", zap.Int64("case_id", t.ID))
		return false
	}
	if err != nil {
		r.log.Warn("fetch case detail", zap.Int64("case_id", t.ID), zap.Error(err))
		r.active = false
		r.state = Collapsed
		r.detail = nil
		return true
	}
	r.state = Expanded
	r.detail = &d
	return true
}

// Fetch loads the detail for a ticket. It does not touch reconciler state.
func (r *Reconciler) Fetch(ctx context.Context, t Ticket) (cases.Detail, error) {
	return r.api.GetCase(ctx, t.ID)
}

// Click is Toggle, Fetch and Resolve in one synchronous step.
func (r *Reconciler) Click(ctx context.Context, id int64) error {
	t, ok := r.Toggle(id)
	if !ok {
		return nil
	}
	d, err := r.Fetch(ctx, t)
	r.Resolve(t, d, err)
	return err
}

// State reports the state of row id.
func (r *Reconciler) State(id int64) RowState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active && r.id == id {
		return r.state
	}
	return Collapsed
}

// Expanded returns the held detail when a row is fully expanded.
func (r *Reconciler) Expanded() (cases.Detail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.state != Expanded || r.detail == nil {
		return cases.Detail{}, false
	}
	return *r.detail, true
}

// replaceDetail swaps the held detail for d if d's row is still expanded.
func (r *Reconciler) replaceDetail(d cases.Detail) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.state != Expanded || r.id != d.ID {
		return false
	}
	r.detail = &d
	return true
}
