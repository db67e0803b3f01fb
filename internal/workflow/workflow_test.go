package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

type testEnv struct {
	store      *memStore
	eng        *Engine
	operator   uuid.UUID
	supervisor uuid.UUID
}

func newTestEnv() *testEnv {
	store := newMemStore()
	operator := uuid.New()
	supervisor := uuid.New()
	store.supervisors[supervisor] = true

	eng := New(Config{
		Orders:    store,
		Progress:  progressStore{store},
		Rows:      store,
		Audit:     auditStore{store},
		Directory: store,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &testEnv{store: store, eng: eng, operator: operator, supervisor: supervisor}
}

// twoStepPlan builds a plan with two machines on step 0 (sequence 1, 2)
// and a single machine on step 1.
func twoStepPlan() (*domain.OrderPlan, []uuid.UUID) {
	m1, m2, m3 := uuid.New(), uuid.New(), uuid.New()
	plan := &domain.OrderPlan{
		Number: "ORD-2001",
		Params: map[string]float64{"quantity": 100},
		Steps: []domain.StepPlan{
			{
				StepID: uuid.New(),
				Machines: []domain.MachinePlan{
					{MachineID: m1, SequenceOrder: 1, TargetFormulas: map[string]string{"expected_weight": "quantity * 1.0"}},
					{MachineID: m2, SequenceOrder: 2},
				},
			},
			{
				StepID: uuid.New(),
				Machines: []domain.MachinePlan{
					{MachineID: m3, SequenceOrder: 1},
				},
			},
		},
	}
	return plan, []uuid.UUID{m1, m2, m3}
}

func addRow(gross, tare, wastage, cost float64, units int) domain.RowMutation {
	return domain.RowMutation{
		Op:  domain.RowOpAdd,
		Row: &domain.RowPayload{GrossWeight: gross, TareWeight: tare, Wastage: wastage, Cost: cost, Units: units},
	}
}

// runMachine drives a machine from PENDING to COMPLETED with the given rows.
func (env *testEnv) runMachine(t *testing.T, orderID, machineID, operatorID uuid.UUID, rows ...domain.RowMutation) {
	t.Helper()
	ctx := context.Background()
	if _, err := env.eng.StartMachine(ctx, orderID, machineID, operatorID); err != nil {
		t.Fatalf("StartMachine(%s): %v", machineID, err)
	}
	if _, err := env.eng.CompleteMachine(ctx, orderID, machineID, operatorID, rows, nil); err != nil {
		t.Fatalf("CompleteMachine(%s): %v", machineID, err)
	}
}

// --- CreateOrder Tests ---

func TestCreateOrder(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()

	o, err := env.eng.CreateOrder(ctx, plan)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if o.Status != domain.OrderStatusPending {
		t.Errorf("status = %s, want PENDING", o.Status)
	}
	if o.Priority != domain.PriorityNormal {
		t.Errorf("priority = %s, want NORMAL default", o.Priority)
	}
	if len(o.Steps) != 2 || len(o.Steps[0].Machines) != 2 {
		t.Fatalf("unexpected tree shape: %d steps", len(o.Steps))
	}

	// Formula target resolved once at creation.
	_, mp, ok := o.FindMachine(machines[0])
	if !ok {
		t.Fatal("machine not found in order")
	}
	if mp.Target.ExpectedWeight != 100 {
		t.Errorf("ExpectedWeight = %v, want 100 from formula", mp.Target.ExpectedWeight)
	}

	if o.Summary == nil || o.Summary.TotalMachines != 3 || o.Summary.Progress != 0 {
		t.Errorf("summary = %+v, want 3 machines at 0%%", o.Summary)
	}

	entries, _ := env.eng.ListAudit(ctx, o.ID, 0)
	if len(entries) != 1 || entries[0].Action != domain.AuditOrderCreated {
		t.Errorf("audit = %+v, want single order.created", entries)
	}
}

func TestCreateOrder_InvalidPlan(t *testing.T) {
	env := newTestEnv()
	plan, _ := twoStepPlan()
	plan.Steps[0].Machines[1].SequenceOrder = 1 // duplicate

	_, err := env.eng.CreateOrder(context.Background(), plan)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCreateOrder_Approval(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	plan.RequiresApproval = true

	o, err := env.eng.CreateOrder(ctx, plan)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Status != domain.OrderStatusWaitApproval {
		t.Fatalf("status = %s, want WAIT_APPROVAL", o.Status)
	}

	env.store.assign(env.operator, machines...)

	// Plain operator may not approve.
	if err := env.eng.ApproveOrder(ctx, o.ID, env.operator); !errors.Is(err, ErrForbidden) {
		t.Errorf("approve by operator: err = %v, want ErrForbidden", err)
	}

	if err := env.eng.ApproveOrder(ctx, o.ID, env.supervisor); err != nil {
		t.Fatalf("approve by supervisor: %v", err)
	}

	// Second approval hits the wrong status.
	if err := env.eng.ApproveOrder(ctx, o.ID, env.supervisor); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double approve: err = %v, want ErrInvalidState", err)
	}

	if _, err := env.eng.StartMachine(ctx, o.ID, machines[0], env.operator); err != nil {
		t.Errorf("start after approval: %v", err)
	}
}

func TestStartMachine_ImplicitApproval(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	plan.RequiresApproval = true
	env.store.assign(env.operator, machines...)

	o, err := env.eng.CreateOrder(ctx, plan)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Status != domain.OrderStatusWaitApproval {
		t.Fatalf("status = %s, want WAIT_APPROVAL", o.Status)
	}

	// Starting the first machine approves the order implicitly.
	if _, err := env.eng.StartMachine(ctx, o.ID, machines[0], env.operator); err != nil {
		t.Fatalf("StartMachine from WAIT_APPROVAL: %v", err)
	}

	fresh, _ := env.eng.GetOrder(ctx, o.ID)
	if fresh.Status != domain.OrderStatusInProgress {
		t.Errorf("order status = %s, want IN_PROGRESS", fresh.Status)
	}
	if fresh.ActualStartAt == nil {
		t.Error("ActualStartAt should be set on first start")
	}
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)

	if err := env.eng.CancelOrder(ctx, o.ID, env.supervisor); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	// Work on a cancelled order is rejected.
	if _, err := env.eng.StartMachine(ctx, o.ID, machines[0], env.operator); !errors.Is(err, ErrInvalidState) {
		t.Errorf("start on cancelled: err = %v, want ErrInvalidState", err)
	}
}

// --- StartMachine Tests ---

func TestStartMachine(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)

	mp, err := env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)
	if err != nil {
		t.Fatalf("StartMachine: %v", err)
	}
	if mp.Status != domain.MachineStatusInProgress {
		t.Errorf("machine status = %s, want IN_PROGRESS", mp.Status)
	}
	if !mp.BoundTo(env.operator) {
		t.Error("machine should be bound to the operator")
	}
	if mp.TableID == nil {
		t.Error("production table should be created on first start")
	}

	// First start flips the order itself.
	fresh, _ := env.eng.GetOrder(ctx, o.ID)
	if fresh.Status != domain.OrderStatusInProgress {
		t.Errorf("order status = %s, want IN_PROGRESS", fresh.Status)
	}
	if fresh.ActualStartAt == nil {
		t.Error("ActualStartAt should be set")
	}
	if fresh.Steps[0].Status != domain.StepStatusInProgress {
		t.Errorf("step status = %s, want IN_PROGRESS", fresh.Steps[0].Status)
	}

	// Double start.
	if _, err := env.eng.StartMachine(ctx, o.ID, machines[0], env.operator); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double start: err = %v, want ErrInvalidState", err)
	}
}

func TestStartMachine_SequenceGate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)

	// Sibling with a smaller sequence order is not completed.
	if _, err := env.eng.StartMachine(ctx, o.ID, machines[1], env.operator); !errors.Is(err, ErrSequence) {
		t.Errorf("second machine: err = %v, want ErrSequence", err)
	}

	// Next step is gated by the whole previous step.
	if _, err := env.eng.StartMachine(ctx, o.ID, machines[2], env.operator); !errors.Is(err, ErrSequence) {
		t.Errorf("next step machine: err = %v, want ErrSequence", err)
	}
}

func TestStartMachine_Forbidden(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()

	o, _ := env.eng.CreateOrder(ctx, plan)

	stranger := uuid.New()
	if _, err := env.eng.StartMachine(ctx, o.ID, machines[0], stranger); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}

	// Supervisor may run any machine.
	if _, err := env.eng.StartMachine(ctx, o.ID, machines[0], env.supervisor); err != nil {
		t.Errorf("supervisor start: %v", err)
	}
}

func TestStartMachine_Concurrent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()

	opA, opB := uuid.New(), uuid.New()
	env.store.assign(opA, machines...)
	env.store.assign(opB, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, op := range []uuid.UUID{opA, opB} {
		wg.Add(1)
		go func(i int, op uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.eng.StartMachine(ctx, o.ID, machines[0], op)
		}(i, op)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidState):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Errorf("winners = %d, losers = %d, want exactly one of each", won, lost)
	}

	// The binding belongs to exactly one of the two.
	mp, _ := env.eng.progress.Get(ctx, o.ID, machines[0])
	if mp.OperatorID == nil || (*mp.OperatorID != opA && *mp.OperatorID != opB) {
		t.Errorf("operator binding = %v", mp.OperatorID)
	}
}

// --- SaveProgress Tests ---

func TestSaveProgress(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	snap, err := env.eng.SaveProgress(ctx, o.ID, machines[0], env.operator, []domain.RowMutation{
		addRow(60, 10, 5, 100, 20),
		addRow(55, 10, 3, 90, 18),
	}, "first shift batch")
	if err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	if len(snap.Results) != 2 || !snap.Results[0].Applied || !snap.Results[1].Applied {
		t.Fatalf("results = %+v, want both applied", snap.Results)
	}
	if snap.Output.NetWeight != 95 || snap.Output.Wastage != 8 || snap.Output.Rows != 2 {
		t.Errorf("output = %+v", snap.Output.TotalCalculations)
	}
	if snap.Output.Status != domain.OutputPartial {
		t.Errorf("output status = %s, want PARTIAL", snap.Output.Status)
	}

	// The batch note lands in the audit trail.
	entries, _ := env.eng.ListAudit(ctx, o.ID, 0)
	var found bool
	for _, e := range entries {
		if e.Action == domain.AuditSaveProgress && e.Note == "first shift batch" {
			found = true
		}
	}
	if !found {
		t.Errorf("audit = %+v, want save_progress entry with the batch note", entries)
	}
}

func TestSaveProgress_PartialBatch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	bogus := uuid.New()
	snap, err := env.eng.SaveProgress(ctx, o.ID, machines[0], env.operator, []domain.RowMutation{
		addRow(60, 10, 5, 100, 20),
		{Op: domain.RowOpUpdate, RowID: &bogus, Row: &domain.RowPayload{GrossWeight: 1}},
		{Op: domain.RowOpAdd, Row: &domain.RowPayload{GrossWeight: 5, TareWeight: 10}}, // tare > gross
		addRow(40, 5, 2, 50, 10),
	}, "")
	if err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}

	want := []bool{true, false, false, true}
	for i, w := range want {
		if snap.Results[i].Applied != w {
			t.Errorf("result[%d].Applied = %v, want %v (%s)", i, snap.Results[i].Applied, w, snap.Results[i].Error)
		}
	}

	// Failed rows do not poison the totals.
	if snap.Output.Rows != 2 || snap.Output.NetWeight != 85 {
		t.Errorf("output = %+v, want 2 rows, net 85", snap.Output.TotalCalculations)
	}
}

func TestSaveProgress_UpdateIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	snap, _ := env.eng.SaveProgress(ctx, o.ID, machines[0], env.operator, []domain.RowMutation{
		addRow(60, 10, 5, 100, 20),
	}, "")
	rowID := snap.Results[0].RowID

	upd := domain.RowMutation{Op: domain.RowOpUpdate, RowID: &rowID, Row: &domain.RowPayload{GrossWeight: 70, TareWeight: 10, Wastage: 4, Cost: 110, Units: 22}}

	for i := 0; i < 2; i++ {
		snap, err := env.eng.SaveProgress(ctx, o.ID, machines[0], env.operator, []domain.RowMutation{upd}, "")
		if err != nil {
			t.Fatalf("SaveProgress #%d: %v", i, err)
		}
		if snap.Output.Rows != 1 || snap.Output.NetWeight != 60 {
			t.Errorf("after update #%d: %+v", i, snap.Output.TotalCalculations)
		}
	}
}

func TestSaveProgress_Forbidden(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	// Even an assigned colleague cannot write into a machine bound to
	// someone else.
	other := uuid.New()
	env.store.assign(other, machines...)
	_, err := env.eng.SaveProgress(ctx, o.ID, machines[0], other, []domain.RowMutation{addRow(10, 0, 0, 0, 1)}, "")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

// --- CompleteMachine Tests ---

func TestCompleteMachine_EmptyOutput(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	_, err := env.eng.CompleteMachine(ctx, o.ID, machines[0], env.operator, nil, nil)
	if !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("err = %v, want ErrEmptyOutput", err)
	}
}

func TestCompleteMachine(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	// Expected weight 100, net 105: clean pass. The tail of unsaved
	// rows goes through the same batch protocol.
	snap, err := env.eng.CompleteMachine(ctx, o.ID, machines[0], env.operator, []domain.RowMutation{
		addRow(75, 10, 5, 100, 20),
		addRow(45, 5, 2, 60, 12),
	}, nil)
	if err != nil {
		t.Fatalf("CompleteMachine: %v", err)
	}

	if snap.Machine.Status != domain.MachineStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", snap.Machine.Status)
	}
	if snap.Output.Status != domain.OutputFinal {
		t.Errorf("output status = %s, want FINAL", snap.Output.Status)
	}
	if snap.Machine.QualityStatus != domain.QualityPassed {
		t.Errorf("quality = %s (%v), want PASSED", snap.Machine.QualityStatus, snap.Machine.QualityNotes)
	}

	// Sibling with the next sequence order becomes eligible.
	if _, err := env.eng.StartMachine(ctx, o.ID, machines[1], env.operator); err != nil {
		t.Errorf("next machine start: %v", err)
	}
}

func TestCompleteMachine_QualityReview(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	// Net 80 against expected 100 — below the 90% band.
	snap, err := env.eng.CompleteMachine(ctx, o.ID, machines[0], env.operator, []domain.RowMutation{
		addRow(90, 10, 5, 100, 20),
	}, nil)
	if err != nil {
		t.Fatalf("CompleteMachine: %v", err)
	}
	if snap.Machine.QualityStatus != domain.QualityReview {
		t.Errorf("quality = %s, want REVIEW", snap.Machine.QualityStatus)
	}
	if len(snap.Machine.QualityNotes) == 0 {
		t.Error("quality notes should explain the shortfall")
	}
}

func TestCompleteMachine_Override(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	override := &domain.QualityOverride{
		Status:     domain.QualityPassed,
		Notes:      []string{"manual inspection ok"},
		ReviewerID: env.supervisor,
	}

	// Plain operator may not override the verdict.
	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)
	_, err := env.eng.CompleteMachine(ctx, o.ID, machines[0], env.operator, []domain.RowMutation{addRow(90, 10, 5, 100, 20)}, override)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("override by operator: err = %v, want ErrForbidden", err)
	}

	// Supervisor running the machine may.
	plan2, machines2 := twoStepPlan()
	plan2.Number = "ORD-2002"
	o2, _ := env.eng.CreateOrder(ctx, plan2)
	env.eng.StartMachine(ctx, o2.ID, machines2[0], env.supervisor)
	snap, err := env.eng.CompleteMachine(ctx, o2.ID, machines2[0], env.supervisor, []domain.RowMutation{addRow(90, 10, 5, 100, 20)}, override)
	if err != nil {
		t.Fatalf("override by supervisor: %v", err)
	}
	if snap.Machine.QualityStatus != domain.QualityPassed {
		t.Errorf("quality = %s, want overridden PASSED", snap.Machine.QualityStatus)
	}
	if len(snap.Machine.QualityNotes) < 2 {
		t.Errorf("notes = %v, want computed note plus override note", snap.Machine.QualityNotes)
	}
}

// --- Stop/Resume Tests ---

func TestStopMachine_Pause(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	snap, err := env.eng.StopMachine(ctx, o.ID, machines[0], env.operator, StopInput{
		Type:   domain.StopTypePause,
		Reason: "shift change",
		Rows:   []domain.RowMutation{addRow(60, 10, 5, 100, 20)},
	})
	if err != nil {
		t.Fatalf("StopMachine: %v", err)
	}

	if snap.Machine.Status != domain.MachineStatusPaused {
		t.Errorf("status = %s, want PAUSED", snap.Machine.Status)
	}
	// Pause keeps the operator bound.
	if !snap.Machine.BoundTo(env.operator) {
		t.Error("pause should retain the operator binding")
	}
	// The unsaved tail was flushed before stopping.
	if snap.Output.Rows != 1 || snap.Output.NetWeight != 50 {
		t.Errorf("output = %+v", snap.Output.TotalCalculations)
	}

	// A paused machine with no running siblings blocks its step.
	fresh, _ := env.eng.GetOrder(ctx, o.ID)
	if fresh.Steps[0].Status != domain.StepStatusBlocked {
		t.Errorf("step status = %s, want BLOCKED", fresh.Steps[0].Status)
	}

	// Pause of a paused machine is rejected.
	_, err = env.eng.StopMachine(ctx, o.ID, machines[0], env.operator, StopInput{Type: domain.StopTypePause})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("double pause: err = %v, want ErrInvalidState", err)
	}
}

func TestResumeMachine(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)
	env.eng.StopMachine(ctx, o.ID, machines[0], env.operator, StopInput{
		Type:   domain.StopTypePause,
		Reason: "lunch",
		Rows:   []domain.RowMutation{addRow(60, 10, 5, 100, 20)},
	})

	// Another assigned operator picks the machine up.
	other := uuid.New()
	env.store.assign(other, machines...)

	mp, err := env.eng.ResumeMachine(ctx, o.ID, machines[0], other)
	if err != nil {
		t.Fatalf("ResumeMachine: %v", err)
	}
	if mp.Status != domain.MachineStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", mp.Status)
	}
	if !mp.BoundTo(other) {
		t.Error("resume should rebind to the resuming operator")
	}
	if mp.Reason != "" || mp.StoppedAt != nil {
		t.Error("resume should clear the stop marks")
	}

	// Rows survived the pause.
	rows, _ := env.eng.ListRows(ctx, o.ID, machines[0])
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

func TestStopMachine_Error(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	// ERROR without a reason is rejected.
	_, err := env.eng.StopMachine(ctx, o.ID, machines[0], env.operator, StopInput{Type: domain.StopTypeError})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	snap, err := env.eng.StopMachine(ctx, o.ID, machines[0], env.operator, StopInput{
		Type:   domain.StopTypeError,
		Reason: "extruder jam",
	})
	if err != nil {
		t.Fatalf("StopMachine: %v", err)
	}
	if snap.Machine.Status != domain.MachineStatusError {
		t.Errorf("status = %s, want ERROR", snap.Machine.Status)
	}
	if !snap.Machine.BoundTo(env.operator) {
		t.Error("error stop should retain the operator binding")
	}

	// Resume from ERROR is allowed once the machine is fixed.
	if _, err := env.eng.ResumeMachine(ctx, o.ID, machines[0], env.operator); err != nil {
		t.Errorf("resume from error: %v", err)
	}
}

func TestStopMachine_HardStop(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, _ := env.eng.CreateOrder(ctx, plan)
	env.eng.StartMachine(ctx, o.ID, machines[0], env.operator)

	snap, err := env.eng.StopMachine(ctx, o.ID, machines[0], env.operator, StopInput{
		Type: domain.StopTypeStop,
		Rows: []domain.RowMutation{addRow(60, 10, 5, 100, 20)},
	})
	if err != nil {
		t.Fatalf("StopMachine: %v", err)
	}

	if snap.Machine.Status != domain.MachineStatusPending {
		t.Errorf("status = %s, want PENDING", snap.Machine.Status)
	}
	if snap.Machine.OperatorID != nil {
		t.Error("hard stop should release the operator")
	}

	// Released machine cannot be resumed, only restarted.
	if _, err := env.eng.ResumeMachine(ctx, o.ID, machines[0], env.operator); !errors.Is(err, ErrInvalidState) {
		t.Errorf("resume after hard stop: err = %v, want ErrInvalidState", err)
	}

	// Restart continues the same table: the partial output counts.
	other := uuid.New()
	env.store.assign(other, machines...)
	mp, err := env.eng.StartMachine(ctx, o.ID, machines[0], other)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if mp.TableID == nil || *mp.TableID != *snap.Machine.TableID {
		t.Error("restart should reuse the production table")
	}

	done, err := env.eng.CompleteMachine(ctx, o.ID, machines[0], other, []domain.RowMutation{addRow(65, 10, 3, 80, 15)}, nil)
	if err != nil {
		t.Fatalf("CompleteMachine: %v", err)
	}
	if done.Output.Rows != 2 || done.Output.NetWeight != 105 {
		t.Errorf("final output = %+v, want rows from before the hard stop included", done.Output.TotalCalculations)
	}
}

// --- Pipeline Tests ---

func TestFullPipeline(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan, machines := twoStepPlan()
	env.store.assign(env.operator, machines...)

	o, err := env.eng.CreateOrder(ctx, plan)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	env.runMachine(t, o.ID, machines[0], env.operator, addRow(75, 10, 5, 100, 20), addRow(45, 5, 2, 60, 12))
	env.runMachine(t, o.ID, machines[1], env.operator, addRow(50, 5, 1, 40, 9))

	// Step 0 done, step 1 opens.
	mid, _ := env.eng.GetOrder(ctx, o.ID)
	if mid.Steps[0].Status != domain.StepStatusCompleted {
		t.Errorf("step 0 = %s, want COMPLETED", mid.Steps[0].Status)
	}
	if mid.CurrentStepIndex != 1 {
		t.Errorf("CurrentStepIndex = %d, want 1", mid.CurrentStepIndex)
	}

	env.runMachine(t, o.ID, machines[2], env.operator, addRow(30, 5, 1, 20, 5))

	fin, _ := env.eng.GetOrder(ctx, o.ID)
	if fin.Status != domain.OrderStatusCompleted {
		t.Fatalf("order status = %s, want COMPLETED", fin.Status)
	}
	if fin.ActualEndAt == nil {
		t.Error("ActualEndAt should be set")
	}
	if fin.CurrentStepIndex != len(fin.Steps) {
		t.Errorf("CurrentStepIndex = %d, want past the end", fin.CurrentStepIndex)
	}
	if fin.Summary == nil || fin.Summary.Progress != 100 || fin.Summary.CompletedMachines != 3 {
		t.Errorf("summary = %+v", fin.Summary)
	}
	// 105 + 45 + 25 net across the three machines.
	if fin.Summary.NetWeight != 175 {
		t.Errorf("summary net weight = %v, want 175", fin.Summary.NetWeight)
	}
}

// --- Queue Tests ---

func TestGetPendingForMachine(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	planA, machinesA := twoStepPlan()
	planA.Number = "ORD-A"

	// Same machine set participates in a second, urgent order.
	planB := &domain.OrderPlan{
		Number:   "ORD-B",
		Priority: domain.PriorityUrgent,
		Steps: []domain.StepPlan{
			{StepID: uuid.New(), Machines: []domain.MachinePlan{
				{MachineID: machinesA[0], SequenceOrder: 1},
			}},
		},
	}

	env.store.assign(env.operator, machinesA...)

	oa, _ := env.eng.CreateOrder(ctx, planA)
	ob, _ := env.eng.CreateOrder(ctx, planB)

	work, err := env.eng.GetPendingForMachine(ctx, machinesA[0])
	if err != nil {
		t.Fatalf("GetPendingForMachine: %v", err)
	}
	if len(work) != 2 {
		t.Fatalf("work = %d items, want 2", len(work))
	}
	// Urgent order first despite being created later.
	if work[0].OrderID != ob.ID || work[1].OrderID != oa.ID {
		t.Errorf("queue order = %s, %s; want urgent first", work[0].OrderNumber, work[1].OrderNumber)
	}

	// The gated second machine has no eligible work yet.
	work, _ = env.eng.GetPendingForMachine(ctx, machinesA[1])
	if len(work) != 0 {
		t.Errorf("machine 2 queue = %d items, want 0", len(work))
	}

	// Running the first machine removes it from the queue.
	env.eng.StartMachine(ctx, oa.ID, machinesA[0], env.operator)
	work, _ = env.eng.GetPendingForMachine(ctx, machinesA[0])
	if len(work) != 1 || work[0].OrderID != ob.ID {
		t.Errorf("after start: %d items", len(work))
	}
}
