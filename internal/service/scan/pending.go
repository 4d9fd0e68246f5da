package scan

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/domain/models"
)

// ErrNoPendingAction indicates there is nothing to confirm, cancel or re-loan.
var ErrNoPendingAction = errors.New("no pending action")

// ErrStalePendingToken indicates the request refers to a pending action that
// has already been replaced or resolved.
var ErrStalePendingToken = errors.New("pending action token is stale")

// ErrReLoanNotAllowed indicates a re-loan was requested while the pending
// action is not a return.
var ErrReLoanNotAllowed = errors.New("re-loan is only allowed for a pending return")

const executeTimeout = 10 * time.Second

// Executor performs the committed mutations. Implemented by tracking.Service.
type Executor interface {
	Loan(ctx context.Context, record models.ControlRecord) (models.ControlRecord, error)
	Return(ctx context.Context, record models.ControlRecord) (models.ControlRecord, error)
	ReLoan(ctx context.Context, record models.ControlRecord) (models.ControlRecord, error)
}

// PendingSnapshot is the externally visible view of the pending action.
type PendingSnapshot struct {
	Token     uuid.UUID            `json:"token"`
	Record    models.ControlRecord `json:"record"`
	Action    models.Action        `json:"action"`
	Deadline  time.Time            `json:"deadline"`
	Remaining time.Duration        `json:"remaining"`
	// DisplaySeconds is the coarse whole-second countdown shown large on
	// screen, separate from the fine-grained Remaining feedback.
	DisplaySeconds int `json:"displaySeconds"`
}

// pendingState owns the scheduled handles of one pending action. Both the
// expiry timer and the countdown ticker are stopped together on every exit.
type pendingState struct {
	token     uuid.UUID
	record    models.ControlRecord
	action    models.Action
	deadline  time.Time
	remaining time.Duration

	expire *time.Timer
	ticker *time.Ticker
	done   chan struct{}
}

// Pending holds at most one resolved, not-yet-committed action and runs its
// cancelable auto-confirm grace window. Arming while another action is
// pending silently cancels the old one; actions never stack.
type Pending struct {
	mu     sync.Mutex
	cur    *pendingState
	exec   Executor
	window time.Duration
	tick   time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewPending wires the auto-confirm state machine.
func NewPending(exec Executor, window, tick time.Duration, logger *zap.Logger) *Pending {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pending{
		exec:   exec,
		window: window,
		tick:   tick,
		now:    time.Now,
		logger: logger,
	}
}

// Arm replaces any pending action with a new one and starts its grace window.
func (p *Pending) Arm(record models.ControlRecord, action models.Action) PendingSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dropLocked()

	st := &pendingState{
		token:     uuid.New(),
		record:    record,
		action:    action,
		deadline:  p.now().Add(p.window),
		remaining: p.window,
		ticker:    time.NewTicker(p.tick),
		done:      make(chan struct{}),
	}
	st.expire = time.AfterFunc(p.window, func() { p.autoConfirm(st.token) })
	p.cur = st

	go p.countdown(st)

	p.logger.Debug("pending action armed",
		zap.String("item_code", record.ItemCode), zap.String("action", string(action)))
	return snapshotOf(st)
}

// Snapshot returns the pending action, if any.
func (p *Pending) Snapshot() (PendingSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil {
		return PendingSnapshot{}, false
	}
	return snapshotOf(p.cur), true
}

// Confirm commits the pending action identified by token.
func (p *Pending) Confirm(ctx context.Context, token uuid.UUID) (models.ControlRecord, error) {
	st, err := p.take(token, "")
	if err != nil {
		return models.ControlRecord{}, err
	}
	return p.execute(ctx, st)
}

// Cancel discards the pending action without mutating anything and returns
// what was discarded so the caller can emit a cancellation notice.
func (p *Pending) Cancel(token uuid.UUID) (PendingSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil {
		return PendingSnapshot{}, ErrNoPendingAction
	}
	if p.cur.token != token {
		return PendingSnapshot{}, ErrStalePendingToken
	}

	snap := snapshotOf(p.cur)
	p.dropLocked()
	p.logger.Info("pending action cancelled",
		zap.String("item_code", snap.Record.ItemCode), zap.String("action", string(snap.Action)))
	return snap, nil
}

// ReLoan commits a pending return and immediately loans the item out again.
func (p *Pending) ReLoan(ctx context.Context, token uuid.UUID) (models.ControlRecord, error) {
	st, err := p.take(token, models.ActionReturn)
	if err != nil {
		return models.ControlRecord{}, err
	}
	return p.exec.ReLoan(ctx, st.record)
}

// Reset silently drops any pending action; used on event context changes.
func (p *Pending) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked()
}

// take pops the pending action after checking the token and, when mustAction
// is non-empty, the action kind. A kind mismatch leaves the action pending.
func (p *Pending) take(token uuid.UUID, mustAction models.Action) (*pendingState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil {
		return nil, ErrNoPendingAction
	}
	if p.cur.token != token {
		return nil, ErrStalePendingToken
	}
	if mustAction != "" && p.cur.action != mustAction {
		return nil, ErrReLoanNotAllowed
	}

	st := p.cur
	p.dropLocked()
	return st, nil
}

// dropLocked stops both scheduled handles and clears the pending slot.
// Callers hold p.mu.
func (p *Pending) dropLocked() {
	if p.cur == nil {
		return
	}
	p.cur.expire.Stop()
	p.cur.ticker.Stop()
	close(p.cur.done)
	p.cur = nil
}

// autoConfirm fires when the grace window expires without cancellation and
// commits the action exactly as a manual confirm would.
func (p *Pending) autoConfirm(token uuid.UUID) {
	st, err := p.take(token, "")
	if err != nil {
		// Already cancelled, confirmed or replaced; nothing to do.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
	defer cancel()

	if _, err := p.execute(ctx, st); err != nil {
		p.logger.Error("auto-confirm failed",
			zap.String("item_code", st.record.ItemCode), zap.Error(err))
	}
}

func (p *Pending) execute(ctx context.Context, st *pendingState) (models.ControlRecord, error) {
	switch st.action {
	case models.ActionReturn:
		return p.exec.Return(ctx, st.record)
	default:
		return p.exec.Loan(ctx, st.record)
	}
}

// countdown drives the fine-grained remaining time until the state exits.
func (p *Pending) countdown(st *pendingState) {
	for {
		select {
		case <-st.done:
			return
		case <-st.ticker.C:
			p.mu.Lock()
			if p.cur == st {
				remaining := st.deadline.Sub(p.now())
				if remaining < 0 {
					remaining = 0
				}
				st.remaining = remaining
			}
			p.mu.Unlock()
		}
	}
}

func snapshotOf(st *pendingState) PendingSnapshot {
	return PendingSnapshot{
		Token:          st.token,
		Record:         st.record,
		Action:         st.action,
		Deadline:       st.deadline,
		Remaining:      st.remaining,
		DisplaySeconds: int(math.Ceil(st.remaining.Seconds())),
	}
}
