package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/repo"
)

// memStore is an in-memory implementation of all Engine store
// interfaces. Transition and the order mark methods reproduce the
// conditional-write semantics of the Postgres repos, so concurrency
// tests exercise the same single-winner contract.
type memStore struct {
	mu sync.Mutex

	orders map[uuid.UUID]*domain.Order
	tables map[uuid.UUID]*domain.ProductionTable
	rows   map[uuid.UUID][]domain.ProductionRow
	audit  []domain.AuditEntry

	supervisors map[uuid.UUID]bool
	assignments map[uuid.UUID]map[uuid.UUID]bool // operator → machines
}

func newMemStore() *memStore {
	return &memStore{
		orders:      make(map[uuid.UUID]*domain.Order),
		tables:      make(map[uuid.UUID]*domain.ProductionTable),
		rows:        make(map[uuid.UUID][]domain.ProductionRow),
		supervisors: make(map[uuid.UUID]bool),
		assignments: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (s *memStore) assign(operatorID uuid.UUID, machineIDs ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.assignments[operatorID]
	if !ok {
		m = make(map[uuid.UUID]bool)
		s.assignments[operatorID] = m
	}
	for _, id := range machineIDs {
		m[id] = true
	}
}

// clone deep-copies via JSON so the engine's in-memory mutations never
// leak into the "persisted" state without an explicit write.
func cloneOrder(o *domain.Order) *domain.Order {
	raw, _ := json.Marshal(o)
	var c domain.Order
	_ = json.Unmarshal(raw, &c)
	return &c
}

// --- OrderStore ---

func (s *memStore) Create(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return repo.ErrAlreadyExists
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *memStore) List(_ context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *cloneOrder(o))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) ListActive(_ context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.Status.CanStart() {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (s *memStore) MarkInProgress(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	if o.Status != domain.OrderStatusPending && o.Status != domain.OrderStatusWaitApproval {
		return repo.ErrInvalidState
	}
	o.MarkInProgress(at)
	return nil
}

func (s *memStore) MarkCompleted(_ context.Context, id uuid.UUID, at time.Time) error {
	return s.casOrder(id, domain.OrderStatusInProgress, func(o *domain.Order) { o.MarkCompleted(at) })
}

func (s *memStore) Approve(_ context.Context, id uuid.UUID) error {
	return s.casOrder(id, domain.OrderStatusWaitApproval, func(o *domain.Order) { o.Status = domain.OrderStatusPending })
}

func (s *memStore) Cancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	if o.Status != domain.OrderStatusPending && o.Status != domain.OrderStatusWaitApproval {
		return repo.ErrInvalidState
	}
	o.Status = domain.OrderStatusCancelled
	return nil
}

func (s *memStore) casOrder(id uuid.UUID, from domain.OrderStatus, apply func(*domain.Order)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	if o.Status != from {
		return repo.ErrInvalidState
	}
	apply(o)
	return nil
}

func (s *memStore) SetStepStatus(_ context.Context, orderID uuid.UUID, stepIndex int, status domain.StepStatus, startedAt, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	step, ok := o.Step(stepIndex)
	if !ok {
		return repo.ErrNotFound
	}
	step.Status = status
	step.StartedAt = startedAt
	step.CompletedAt = completedAt
	return nil
}

func (s *memStore) SetCurrentStep(_ context.Context, orderID uuid.UUID, stepIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.CurrentStepIndex = stepIndex
	return nil
}

func (s *memStore) SetSummary(_ context.Context, orderID uuid.UUID, sum domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Summary = &sum
	return nil
}

// --- ProgressStore ---

func (s *memStore) GetProgress(ctx context.Context, orderID, machineID uuid.UUID) (*domain.MachineProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp := s.findMachine(orderID, machineID)
	if mp == nil {
		return nil, repo.ErrNotFound
	}
	c := *mp
	return &c, nil
}

func (s *memStore) Transition(_ context.Context, mp *domain.MachineProgress, from ...domain.MachineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.findMachine(mp.OrderID, mp.MachineID)
	if stored == nil {
		return repo.ErrNotFound
	}
	allowed := false
	for _, f := range from {
		if stored.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return repo.ErrInvalidState
	}
	*stored = *mp
	return nil
}

func (s *memStore) SetOutput(_ context.Context, orderID, machineID uuid.UUID, out domain.CalculatedOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.findMachine(orderID, machineID)
	if stored == nil {
		return repo.ErrNotFound
	}
	stored.Calculated = &out
	return nil
}

func (s *memStore) ListStalled(_ context.Context, olderThan time.Duration) ([]domain.StalledMachine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []domain.StalledMachine
	for _, o := range s.orders {
		for si := range o.Steps {
			for mi := range o.Steps[si].Machines {
				mp := &o.Steps[si].Machines[mi]
				if mp.Status != domain.MachineStatusPaused && mp.Status != domain.MachineStatusError {
					continue
				}
				if mp.StoppedAt == nil || mp.StoppedAt.After(cutoff) {
					continue
				}
				out = append(out, domain.StalledMachine{
					OrderID:   o.ID,
					MachineID: mp.MachineID,
					Status:    mp.Status,
					Reason:    mp.Reason,
					Since:     *mp.StoppedAt,
				})
			}
		}
	}
	return out, nil
}

func (s *memStore) findMachine(orderID, machineID uuid.UUID) *domain.MachineProgress {
	o, ok := s.orders[orderID]
	if !ok {
		return nil
	}
	for si := range o.Steps {
		for mi := range o.Steps[si].Machines {
			if o.Steps[si].Machines[mi].MachineID == machineID {
				return &o.Steps[si].Machines[mi]
			}
		}
	}
	return nil
}

// --- RowStore ---

func (s *memStore) CreateTable(_ context.Context, t *domain.ProductionTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	s.tables[t.ID] = &c
	return nil
}

func (s *memStore) SetTableStatus(_ context.Context, tableID uuid.UUID, status domain.TableStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		return repo.ErrNotFound
	}
	t.Status = status
	return nil
}

func (s *memStore) AddRow(_ context.Context, r *domain.ProductionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[r.TableID] = append(s.rows[r.TableID], *r)
	return nil
}

func (s *memStore) UpdateRow(_ context.Context, tableID, rowID uuid.UUID, p domain.RowPayload, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[tableID]
	for i := range rows {
		if rows[i].ID == rowID {
			rows[i].GrossWeight = p.GrossWeight
			rows[i].TareWeight = p.TareWeight
			rows[i].Wastage = p.Wastage
			rows[i].Cost = p.Cost
			rows[i].Units = p.Units
			rows[i].Note = p.Note
			rows[i].UpdatedAt = at
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *memStore) DeleteRow(_ context.Context, tableID, rowID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[tableID]
	for i := range rows {
		if rows[i].ID == rowID {
			s.rows[tableID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *memStore) ListRows(_ context.Context, tableID uuid.UUID) ([]domain.ProductionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProductionRow(nil), s.rows[tableID]...), nil
}

func (s *memStore) Totals(_ context.Context, tableID uuid.UUID) (domain.TotalCalculations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.FoldRows(s.rows[tableID]), nil
}

// --- AuditStore ---

func (s *memStore) Append(_ context.Context, e *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *e)
	return nil
}

func (s *memStore) ListAudit(_ context.Context, orderID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].OrderID != orderID {
			continue
		}
		out = append(out, s.audit[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// progressStore and auditStore adapt memStore to the interfaces whose
// method names collide with OrderStore on a single receiver.
type progressStore struct{ *memStore }

func (p progressStore) Get(ctx context.Context, orderID, machineID uuid.UUID) (*domain.MachineProgress, error) {
	return p.GetProgress(ctx, orderID, machineID)
}

type auditStore struct{ *memStore }

func (a auditStore) List(ctx context.Context, orderID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	return a.ListAudit(ctx, orderID, limit)
}

// --- Directory ---

func (s *memStore) CanAct(_ context.Context, operatorID, machineID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.supervisors[operatorID] {
		return true, nil
	}
	return s.assignments[operatorID][machineID], nil
}

func (s *memStore) IsSupervisor(_ context.Context, operatorID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supervisors[operatorID], nil
}
