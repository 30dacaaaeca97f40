package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

type ReassignmentMode string

const (
	// ReassignmentBulk moves every subordinate to one supervisor in a single transaction.
	ReassignmentBulk ReassignmentMode = "bulk"
	// ReassignmentIndividual commits each subordinate's move on its own.
	ReassignmentIndividual ReassignmentMode = "individual"
)

func (m ReassignmentMode) Valid() bool {
	return m == ReassignmentBulk || m == ReassignmentIndividual
}

type Assignment struct {
	SubordinateID uuid.UUID
	SupervisorID  uuid.UUID
}

type ReassignmentRequest struct {
	Mode ReassignmentMode
	// Bulk mode.
	SupervisorID   uuid.UUID
	SubordinateIDs []uuid.UUID
	// Individual mode.
	Assignments []Assignment
}

type ReassignmentFailure struct {
	SubordinateID uuid.UUID
	SupervisorID  uuid.UUID
	Code          string
	Message       string
	Err           error
}

type ReassignmentResult struct {
	Mode      ReassignmentMode
	Succeeded []uuid.UUID
	Failed    []ReassignmentFailure
}

func (r ReassignmentResult) OK() bool {
	return len(r.Failed) == 0
}

// firstFailure returns the partial-failure error for the first failed item.
func (r ReassignmentResult) firstFailure() error {
	if r.OK() {
		return nil
	}
	f := r.Failed[0]
	return errPartial(f.SubordinateID, f.Err)
}

// assignments expands a request into explicit edges, rejecting duplicates.
func (req ReassignmentRequest) assignments() ([]Assignment, error) {
	seen := leadership.NewIDSet()
	var out []Assignment
	switch req.Mode {
	case ReassignmentBulk:
		if req.SupervisorID == uuid.Nil {
			return nil, errInvalidBody("supervisor_id is required in bulk mode")
		}
		if len(req.Assignments) > 0 {
			return nil, errInvalidBody("assignments are not accepted in bulk mode")
		}
		for _, id := range req.SubordinateIDs {
			if seen.Has(id) {
				return nil, errInvalidBody("subordinate %s listed twice", id)
			}
			seen.Add(id)
			out = append(out, Assignment{SubordinateID: id, SupervisorID: req.SupervisorID})
		}
	case ReassignmentIndividual:
		if len(req.SubordinateIDs) > 0 || req.SupervisorID != uuid.Nil {
			return nil, errInvalidBody("individual mode takes assignments only")
		}
		for _, a := range req.Assignments {
			if a.SubordinateID == uuid.Nil || a.SupervisorID == uuid.Nil {
				return nil, errInvalidBody("assignment needs both subordinate_id and supervisor_id")
			}
			if seen.Has(a.SubordinateID) {
				return nil, errInvalidBody("subordinate %s listed twice", a.SubordinateID)
			}
			seen.Add(a.SubordinateID)
			out = append(out, a)
		}
	default:
		return nil, errInvalidBody("unknown reassignment mode %q", req.Mode)
	}
	if len(out) == 0 {
		return nil, errInvalidBody("nothing to reassign")
	}
	return out, nil
}

// ReassignmentExecutor applies subordinate -> supervisor edges. Every edge is
// re-validated under row locks when it is written, whatever the caller saw earlier.
type ReassignmentExecutor struct {
	graph *HierarchyGraph
	tx    Transactor
	sink  EventSink
}

func NewReassignmentExecutor(graph *HierarchyGraph, tx Transactor, sink EventSink) *ReassignmentExecutor {
	return &ReassignmentExecutor{graph: graph, tx: tx, sink: sink}
}

// Reassign runs a standalone reassignment. A bulk failure commits nothing and is
// returned as PartialValidationFailure; individual failures are reported in the
// result with a nil error.
func (e *ReassignmentExecutor) Reassign(ctx context.Context, a AuditContext, req ReassignmentRequest) (*ReassignmentResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "hierarchy.ReassignmentExecutor.Reassign",
		trace.WithAttributes(attribute.String("mode", string(req.Mode))),
	)
	defer span.End()

	items, err := req.assignments()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		logRejection(ctx, "reassign", err, logrus.Fields{"mode": req.Mode})
		return nil, err
	}
	exclude := leadership.NewIDSet()
	for _, it := range items {
		exclude.Add(it.SubordinateID)
	}

	var res *ReassignmentResult
	if req.Mode == ReassignmentBulk {
		res, err = e.bulk(ctx, a, items, exclude)
	} else {
		res = e.each(ctx, a, items, exclude)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk reassignment rejected")
		logRejection(ctx, "reassign", err, logrus.Fields{"mode": req.Mode, "supervisor_id": req.SupervisorID})
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("succeeded", len(res.Succeeded)),
		attribute.Int("failed", len(res.Failed)),
	)
	logWithFields(ctx, logrus.InfoLevel, "hierarchy reassignment finished", logrus.Fields{
		"mode":      req.Mode,
		"succeeded": len(res.Succeeded),
		"failed":    len(res.Failed),
	})
	return res, nil
}

func (e *ReassignmentExecutor) bulk(ctx context.Context, a AuditContext, items []Assignment, exclude leadership.IDSet) (*ReassignmentResult, error) {
	res, err := inTx(ctx, e.tx, func(txCtx context.Context) (*ReassignmentResult, error) {
		return e.applyAll(txCtx, a, items, exclude)
	})
	for range items {
		recordReassignment(ReassignmentBulk, err == nil)
	}
	return res, err
}

// applyAll writes every edge inside the caller's transaction and stops at the
// first illegal one. The caller's rollback undoes the edges already written.
func (e *ReassignmentExecutor) applyAll(ctx context.Context, a AuditContext, items []Assignment, exclude leadership.IDSet) (*ReassignmentResult, error) {
	res := &ReassignmentResult{Mode: ReassignmentBulk}
	for _, it := range sortedAssignments(items) {
		if err := e.applyEdge(ctx, a, it, exclude); err != nil {
			return nil, errPartial(it.SubordinateID, err)
		}
		res.Succeeded = append(res.Succeeded, it.SubordinateID)
	}
	return res, nil
}

// each commits every edge in its own transaction and keeps going after failures.
func (e *ReassignmentExecutor) each(ctx context.Context, a AuditContext, items []Assignment, exclude leadership.IDSet) *ReassignmentResult {
	res := &ReassignmentResult{Mode: ReassignmentIndividual}
	for _, it := range items {
		err := e.tx.InTx(ctx, func(txCtx context.Context) error {
			return e.applyEdge(txCtx, a, it, exclude)
		})
		recordReassignment(ReassignmentIndividual, err == nil)
		if err != nil {
			res.Failed = append(res.Failed, failureOf(it, err))
			continue
		}
		res.Succeeded = append(res.Succeeded, it.SubordinateID)
	}
	return res
}

func (e *ReassignmentExecutor) applyEdge(ctx context.Context, a AuditContext, it Assignment, exclude leadership.IDSet) error {
	locked, err := e.graph.lockNodes(ctx, it.SubordinateID, it.SupervisorID)
	if err != nil {
		return err
	}
	sub := locked[it.SubordinateID]
	if err := CheckEligible(locked[it.SupervisorID], sub.DistrictCode, MaxRankFor(sub), exclude); err != nil {
		return err
	}

	before, after, err := e.graph.moveNode(ctx, it.SubordinateID, &it.SupervisorID)
	if err != nil {
		return err
	}
	if leadership.SameSupervisor(before.SupervisorID, after.SupervisorID) {
		return nil
	}
	changeType := events.ChangeSupervisorReassigned
	if before.SupervisorID == nil {
		changeType = events.ChangeSupervisorAssigned
	}
	_, err = emit(ctx, e.sink, a, changeType, &before, after)
	return err
}

func failureOf(it Assignment, err error) ReassignmentFailure {
	f := ReassignmentFailure{
		SubordinateID: it.SubordinateID,
		SupervisorID:  it.SupervisorID,
		Code:          ErrorCode(err),
		Message:       err.Error(),
		Err:           err,
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		f.Message = "internal error"
	}
	return f
}

// sortedAssignments orders edges by subordinate id so concurrent bulk writers lock
// rows in the same order.
func sortedAssignments(items []Assignment) []Assignment {
	ids := make([]uuid.UUID, 0, len(items))
	byID := make(map[uuid.UUID]Assignment, len(items))
	for _, it := range items {
		ids = append(ids, it.SubordinateID)
		byID[it.SubordinateID] = it
	}
	leadership.SortIDs(ids)
	out := make([]Assignment, 0, len(items))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}
