package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/engine"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/telemetry"
)

// ProgressSnapshot — результат применения батча строк: по-строчные
// исходы и свежий агрегат таблицы.
type ProgressSnapshot struct {
	Results []domain.RowResult      `json:"results"`
	Output  domain.CalculatedOutput `json:"output"`
	Machine *domain.MachineProgress `json:"machine"`
}

// StartMachine запускает машину в заказе.
//
// Предусловия: заказ не закрыт, машина в PENDING, все предыдущие этапы
// и машины с меньшим порядком завершены, оператор назначен на машину
// либо супервизор. Первый запуск в заказе переводит сам заказ в
// IN_PROGRESS, в том числе из WAIT_APPROVAL: запуск и есть одобрение.
func (e *Engine) StartMachine(ctx context.Context, orderID, machineID, operatorID uuid.UUID) (*domain.MachineProgress, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}

	if !o.Status.CanStart() {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidState, o.Number, o.Status)
	}

	stepIndex, mp, ok := o.FindMachine(machineID)
	if !ok {
		return nil, fmt.Errorf("%w: machine %s not in order %s", ErrNotFound, machineID, o.Number)
	}

	if mp.Status != domain.MachineStatusPending {
		return nil, fmt.Errorf("%w: machine is %s, expected PENDING", ErrInvalidState, mp.Status)
	}

	if !engine.CanStart(o, stepIndex, machineID) {
		return nil, fmt.Errorf("%w: predecessors of machine %s are not completed", ErrSequence, machineID)
	}

	ok, err = e.dir.CanAct(ctx, operatorID, machineID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: operator %s is not assigned to machine %s", ErrForbidden, operatorID, machineID)
	}

	at := e.now()

	// Жёсткая остановка сохраняет таблицу с частичным выпуском,
	// повторный запуск продолжает её, а не заводит новую.
	tableID := mp.TableID
	if tableID == nil {
		t := &domain.ProductionTable{
			ID:        uuid.New(),
			OrderID:   orderID,
			MachineID: machineID,
			Status:    domain.TableStatusOpen,
			CreatedAt: at,
		}
		if err := e.rows.CreateTable(ctx, t); err != nil {
			return nil, storeErr(err)
		}
		tableID = &t.ID
	} else {
		if err := e.rows.SetTableStatus(ctx, *tableID, domain.TableStatusOpen); err != nil {
			return nil, storeErr(err)
		}
	}

	mp.MarkStarted(operatorID, *tableID, at)
	if err := e.progress.Transition(ctx, mp, domain.MachineStatusPending); err != nil {
		return nil, storeErr(err)
	}

	if o.Status != domain.OrderStatusInProgress {
		if err := e.orders.MarkInProgress(ctx, orderID, at); err != nil && !isConflict(err) {
			e.logger.Error("failed to mark order in progress", "order_id", orderID, "error", err)
		}
		o.MarkInProgress(at)
	}

	e.refresh(ctx, o)

	telemetry.MachineTransitions.WithLabelValues("start").Inc()

	e.logger.Info("machine started",
		"order_id", orderID,
		"machine_id", machineID,
		"operator_id", operatorID,
		"step_index", stepIndex,
	)

	e.appendAudit(ctx, domain.AuditEntry{
		OrderID:   orderID,
		MachineID: &machineID,
		ActorID:   &operatorID,
		Action:    domain.AuditStart,
	})
	e.publishMachineEvent(ctx, mq.MessageTypeMachineStarted, mp, "")

	return mp, nil
}

// SaveProgress применяет упорядоченный батч мутаций строк к таблице
// работающей машины и пересчитывает агрегат.
//
// Батч применяется построчно: отказ отдельной строки фиксируется в
// результате и не прерывает остальные. Частичное применение —
// документированный контракт, вызывающий обязан смотреть в Results.
// Необязательный notes попадает в запись аудита батча.
func (e *Engine) SaveProgress(ctx context.Context, orderID, machineID, operatorID uuid.UUID, muts []domain.RowMutation, notes string) (*ProgressSnapshot, error) {
	mp, err := e.progress.Get(ctx, orderID, machineID)
	if err != nil {
		return nil, storeErr(err)
	}

	if mp.Status != domain.MachineStatusInProgress {
		return nil, fmt.Errorf("%w: machine is %s, expected IN_PROGRESS", ErrInvalidState, mp.Status)
	}
	if !mp.BoundTo(operatorID) {
		return nil, fmt.Errorf("%w: machine is bound to another operator", ErrForbidden)
	}

	results, err := e.applyMutations(ctx, *mp.TableID, muts)
	if err != nil {
		return nil, err
	}

	out, err := e.recalcOutput(ctx, mp, domain.OutputPartial)
	if err != nil {
		return nil, err
	}

	e.appendAudit(ctx, domain.AuditEntry{
		OrderID:   orderID,
		MachineID: &machineID,
		ActorID:   &operatorID,
		Action:    domain.AuditSaveProgress,
		Note:      notes,
	})

	return &ProgressSnapshot{Results: results, Output: out, Machine: mp}, nil
}

// CompleteMachine завершает работу машины.
//
// Хвост несохранённых строк применяется тем же батч-протоколом, затем
// агрегат замораживается как финальный снимок и проходит контроль
// качества. Завершение без единой строки запрещено. Ручной override
// вердикта доступен только супервизору.
func (e *Engine) CompleteMachine(ctx context.Context, orderID, machineID, operatorID uuid.UUID, muts []domain.RowMutation, override *domain.QualityOverride) (*ProgressSnapshot, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}

	_, mp, ok := o.FindMachine(machineID)
	if !ok {
		return nil, fmt.Errorf("%w: machine %s not in order %s", ErrNotFound, machineID, o.Number)
	}

	if mp.Status != domain.MachineStatusInProgress {
		return nil, fmt.Errorf("%w: machine is %s, expected IN_PROGRESS", ErrInvalidState, mp.Status)
	}
	if !mp.BoundTo(operatorID) {
		return nil, fmt.Errorf("%w: machine is bound to another operator", ErrForbidden)
	}

	if override != nil {
		sup, err := e.dir.IsSupervisor(ctx, operatorID)
		if err != nil {
			return nil, storeErr(err)
		}
		if !sup {
			return nil, fmt.Errorf("%w: quality override requires supervisor role", ErrForbidden)
		}
	}

	results, err := e.applyMutations(ctx, *mp.TableID, muts)
	if err != nil {
		return nil, err
	}

	totals, err := e.rows.Totals(ctx, *mp.TableID)
	if err != nil {
		return nil, storeErr(err)
	}
	if totals.Rows == 0 {
		return nil, fmt.Errorf("%w: machine %s has no production rows", ErrEmptyOutput, machineID)
	}

	at := e.now()
	out := domain.CalculatedOutput{
		TotalCalculations: totals,
		Status:            domain.OutputFinal,
		CalculatedAt:      at,
	}

	quality, notes := engine.Evaluate(out, mp.Target, override)

	mp.MarkCompleted(at, out, quality, notes)
	if err := e.progress.Transition(ctx, mp, domain.MachineStatusInProgress); err != nil {
		return nil, storeErr(err)
	}

	if err := e.rows.SetTableStatus(ctx, *mp.TableID, domain.TableStatusCompleted); err != nil {
		e.logger.Error("failed to close production table",
			"order_id", orderID,
			"table_id", *mp.TableID,
			"error", err,
		)
	}

	e.refresh(ctx, o)

	telemetry.MachineTransitions.WithLabelValues("complete").Inc()
	telemetry.QualityVerdicts.WithLabelValues(string(quality)).Inc()

	e.logger.Info("machine completed",
		"order_id", orderID,
		"machine_id", machineID,
		"quality", quality,
		"net_weight", totals.NetWeight,
		"rows", totals.Rows,
	)

	e.appendAudit(ctx, domain.AuditEntry{
		OrderID:   orderID,
		MachineID: &machineID,
		ActorID:   &operatorID,
		Action:    domain.AuditComplete,
	})
	e.publishMachineEvent(ctx, mq.MessageTypeMachineCompleted, mp, "")

	return &ProgressSnapshot{Results: results, Output: out, Machine: mp}, nil
}

// StopInput — параметры остановки машины.
type StopInput struct {
	// Type — вид остановки.
	Type domain.StopType

	// Reason — причина, обязательна для MAINTENANCE и ERROR.
	Reason string

	// Note — свободный комментарий.
	Note string

	// Rows — несохранённый хвост строк, применяется до остановки.
	Rows []domain.RowMutation

	// PlannedResumeAt — справочная отметка планируемого продолжения.
	// Никакого принудительного возобновления по ней не происходит.
	PlannedResumeAt *time.Time
}

// StopMachine останавливает работающую машину.
//
// Сначала применяется хвост строк и пересчитывается частичный агрегат:
// данные не теряются независимо от вида остановки. Затем машина
// переходит по виду остановки: PAUSE и MAINTENANCE — в PAUSED с
// сохранением оператора, ERROR — в ERROR с сохранением оператора,
// STOP — обратно в PENDING со снятой привязкой; частичный выпуск и
// таблица строк при этом остаются за машиной.
func (e *Engine) StopMachine(ctx context.Context, orderID, machineID, operatorID uuid.UUID, in StopInput) (*ProgressSnapshot, error) {
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown stop type %q", ErrValidation, in.Type)
	}
	if in.Reason == "" && (in.Type == domain.StopTypeMaintenance || in.Type == domain.StopTypeError) {
		return nil, fmt.Errorf("%w: stop type %s requires a reason", ErrValidation, in.Type)
	}

	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}

	_, mp, ok := o.FindMachine(machineID)
	if !ok {
		return nil, fmt.Errorf("%w: machine %s not in order %s", ErrNotFound, machineID, o.Number)
	}

	if !mp.Status.IsStoppable() {
		return nil, fmt.Errorf("%w: machine is %s", ErrInvalidState, mp.Status)
	}
	// PAUSE имеет смысл только для работающей машины; остальные виды
	// применимы и к уже стоящей на паузе.
	from := []domain.MachineStatus{domain.MachineStatusInProgress, domain.MachineStatusPaused}
	if in.Type == domain.StopTypePause {
		if mp.Status != domain.MachineStatusInProgress {
			return nil, fmt.Errorf("%w: machine is %s, PAUSE needs IN_PROGRESS", ErrInvalidState, mp.Status)
		}
		from = []domain.MachineStatus{domain.MachineStatusInProgress}
	}

	if err := e.authorizeActor(ctx, mp, operatorID, machineID); err != nil {
		return nil, err
	}

	results, err := e.applyMutations(ctx, *mp.TableID, in.Rows)
	if err != nil {
		return nil, err
	}

	out, err := e.recalcOutput(ctx, mp, domain.OutputPartial)
	if err != nil {
		return nil, err
	}

	at := e.now()
	switch in.Type {
	case domain.StopTypePause, domain.StopTypeMaintenance:
		mp.MarkPaused(in.Reason, in.Note, at)
	case domain.StopTypeError:
		mp.MarkError(in.Reason, in.Note, at)
	case domain.StopTypeStop:
		mp.MarkReleased(in.Reason, in.Note, at)
	}

	if err := e.progress.Transition(ctx, mp, from...); err != nil {
		return nil, storeErr(err)
	}

	if err := e.rows.SetTableStatus(ctx, *mp.TableID, domain.TableStatusPaused); err != nil {
		e.logger.Error("failed to pause production table",
			"order_id", orderID,
			"table_id", *mp.TableID,
			"error", err,
		)
	}

	e.refresh(ctx, o)

	telemetry.MachineTransitions.WithLabelValues(strings.ToLower(string(in.Type))).Inc()

	e.logger.Info("machine stopped",
		"order_id", orderID,
		"machine_id", machineID,
		"stop_type", in.Type,
		"reason", in.Reason,
	)

	e.appendAudit(ctx, domain.AuditEntry{
		OrderID:         orderID,
		MachineID:       &machineID,
		ActorID:         &operatorID,
		Action:          domain.AuditStop,
		StopType:        in.Type,
		Reason:          in.Reason,
		Note:            in.Note,
		PlannedResumeAt: in.PlannedResumeAt,
	})
	e.publishMachineEvent(ctx, mq.MessageTypeMachineStopped, mp, in.Type)

	return &ProgressSnapshot{Results: results, Output: out, Machine: mp}, nil
}

// ResumeMachine возвращает машину в работу после паузы или ошибки.
//
// Возобновить может любой оператор, которому машина доступна, — не
// обязательно тот, кто остановил (смена могла закончиться).
func (e *Engine) ResumeMachine(ctx context.Context, orderID, machineID, operatorID uuid.UUID) (*domain.MachineProgress, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}

	_, mp, ok := o.FindMachine(machineID)
	if !ok {
		return nil, fmt.Errorf("%w: machine %s not in order %s", ErrNotFound, machineID, o.Number)
	}

	if mp.Status != domain.MachineStatusPaused && mp.Status != domain.MachineStatusError {
		return nil, fmt.Errorf("%w: machine is %s, expected PAUSED or ERROR", ErrInvalidState, mp.Status)
	}

	ok, err = e.dir.CanAct(ctx, operatorID, machineID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: operator %s is not assigned to machine %s", ErrForbidden, operatorID, machineID)
	}

	at := e.now()

	if err := e.rows.SetTableStatus(ctx, *mp.TableID, domain.TableStatusOpen); err != nil {
		return nil, storeErr(err)
	}

	mp.MarkResumed(operatorID, at)
	if err := e.progress.Transition(ctx, mp, domain.MachineStatusPaused, domain.MachineStatusError); err != nil {
		return nil, storeErr(err)
	}

	e.refresh(ctx, o)

	telemetry.MachineTransitions.WithLabelValues("resume").Inc()

	e.logger.Info("machine resumed",
		"order_id", orderID,
		"machine_id", machineID,
		"operator_id", operatorID,
	)

	e.appendAudit(ctx, domain.AuditEntry{
		OrderID:   orderID,
		MachineID: &machineID,
		ActorID:   &operatorID,
		Action:    domain.AuditResume,
	})
	e.publishMachineEvent(ctx, mq.MessageTypeMachineResumed, mp, "")

	return mp, nil
}

// authorizeActor проверяет право оператора действовать на машине:
// либо машина привязана к нему, либо справочник разрешает (назначение
// или роль супервизора).
func (e *Engine) authorizeActor(ctx context.Context, mp *domain.MachineProgress, operatorID, machineID uuid.UUID) error {
	if mp.BoundTo(operatorID) {
		return nil
	}
	ok, err := e.dir.CanAct(ctx, operatorID, machineID)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return fmt.Errorf("%w: operator %s may not act on machine %s", ErrForbidden, operatorID, machineID)
	}
	return nil
}

// applyMutations применяет батч мутаций строк по порядку.
//
// Ошибки уровня строки (валидация, отсутствующий row_id) попадают в
// результат и не прерывают батч; ошибки инфраструктуры прерывают.
func (e *Engine) applyMutations(ctx context.Context, tableID uuid.UUID, muts []domain.RowMutation) ([]domain.RowResult, error) {
	results := make([]domain.RowResult, 0, len(muts))

	for i, m := range muts {
		res := domain.RowResult{Index: i, Op: m.Op}

		switch m.Op {
		case domain.RowOpAdd:
			if m.Row == nil {
				res.Error = "row payload required for ADD"
				break
			}
			if err := m.Row.Validate(); err != nil {
				res.Error = err.Error()
				break
			}
			at := e.now()
			row := &domain.ProductionRow{
				ID:          uuid.New(),
				TableID:     tableID,
				GrossWeight: m.Row.GrossWeight,
				TareWeight:  m.Row.TareWeight,
				Wastage:     m.Row.Wastage,
				Cost:        m.Row.Cost,
				Units:       m.Row.Units,
				Note:        m.Row.Note,
				CreatedAt:   at,
				UpdatedAt:   at,
			}
			if err := e.rows.AddRow(ctx, row); err != nil {
				return nil, storeErr(err)
			}
			res.RowID = row.ID
			res.Applied = true

		case domain.RowOpUpdate:
			if m.RowID == nil || m.Row == nil {
				res.Error = "row_id and row payload required for UPDATE"
				break
			}
			if err := m.Row.Validate(); err != nil {
				res.Error = err.Error()
				break
			}
			res.RowID = *m.RowID
			err := e.rows.UpdateRow(ctx, tableID, *m.RowID, *m.Row, e.now())
			if err != nil {
				if isNotFound(err) {
					res.Error = "row not found"
					break
				}
				return nil, storeErr(err)
			}
			res.Applied = true

		case domain.RowOpDelete:
			if m.RowID == nil {
				res.Error = "row_id required for DELETE"
				break
			}
			res.RowID = *m.RowID
			err := e.rows.DeleteRow(ctx, tableID, *m.RowID)
			if err != nil {
				if isNotFound(err) {
					res.Error = "row not found"
					break
				}
				return nil, storeErr(err)
			}
			res.Applied = true

		default:
			res.Error = fmt.Sprintf("unknown row op %q", m.Op)
		}

		telemetry.RowMutations.WithLabelValues(string(m.Op), strconv.FormatBool(res.Applied)).Inc()
		results = append(results, res)
	}

	return results, nil
}

// recalcOutput пересчитывает агрегат таблицы и сохраняет снимок.
func (e *Engine) recalcOutput(ctx context.Context, mp *domain.MachineProgress, status domain.OutputStatus) (domain.CalculatedOutput, error) {
	totals, err := e.rows.Totals(ctx, *mp.TableID)
	if err != nil {
		return domain.CalculatedOutput{}, storeErr(err)
	}

	out := domain.CalculatedOutput{
		TotalCalculations: totals,
		Status:            status,
		CalculatedAt:      e.now(),
	}

	if err := e.progress.SetOutput(ctx, mp.OrderID, mp.MachineID, out); err != nil {
		return domain.CalculatedOutput{}, storeErr(err)
	}

	mp.Calculated = &out
	return out, nil
}
