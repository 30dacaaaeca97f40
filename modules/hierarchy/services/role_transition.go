package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

type TransitionAction string

const (
	ActionAppoint TransitionAction = "appoint"
	ActionPromote TransitionAction = "promote"
	ActionDemote  TransitionAction = "demote"
	ActionRemove  TransitionAction = "remove"
	ActionLink    TransitionAction = "link"
)

// ReassignmentPlan says where the direct subordinates of a demoted or removed
// node go. Bulk uses SupervisorID, individual uses Assignments.
type ReassignmentPlan struct {
	Mode         ReassignmentMode
	SupervisorID uuid.UUID
	Assignments  []Assignment
}

type AppointInput struct {
	NodeID       uuid.UUID
	Role         leadership.Role
	SupervisorID *uuid.UUID
}

type PromoteInput struct {
	NodeID       uuid.UUID
	Role         leadership.Role
	SupervisorID *uuid.UUID
}

type DemoteInput struct {
	NodeID       uuid.UUID
	Role         leadership.Role
	SupervisorID *uuid.UUID
	Plan         *ReassignmentPlan
}

type RemoveInput struct {
	NodeID uuid.UUID
	Plan   *ReassignmentPlan
}

type LinkInput struct {
	NodeID       uuid.UUID
	SupervisorID *uuid.UUID
}

type TransitionResult struct {
	Action  TransitionAction
	Applied bool
	Before  leadership.Node
	After   leadership.Node
	// CascadeSize counts every transitive subordinate of the node before the change.
	CascadeSize  int
	Reassignment *ReassignmentResult
}

// RoleTransitionEngine drives the role state machine: NO_ROLE and HAS_ROLE(rank).
type RoleTransitionEngine struct {
	graph     *HierarchyGraph
	discovery *SubordinateDiscovery
	executor  *ReassignmentExecutor
	tx        Transactor
	sink      EventSink
}

func NewRoleTransitionEngine(
	graph *HierarchyGraph,
	discovery *SubordinateDiscovery,
	executor *ReassignmentExecutor,
	tx Transactor,
	sink EventSink,
) *RoleTransitionEngine {
	return &RoleTransitionEngine{
		graph:     graph,
		discovery: discovery,
		executor:  executor,
		tx:        tx,
		sink:      sink,
	}
}

func (e *RoleTransitionEngine) startSpan(ctx context.Context, action TransitionAction, nodeID uuid.UUID) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "hierarchy.RoleTransitionEngine."+string(action),
		trace.WithAttributes(
			attribute.String("action", string(action)),
			attribute.String("node_id", nodeID.String()),
		),
	)
}

func (e *RoleTransitionEngine) finish(ctx context.Context, span trace.Span, action TransitionAction, res *TransitionResult, err error) {
	recordTransition(action, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
		fields := logrus.Fields{"action": action}
		if res != nil {
			fields["node_id"] = res.Before.ID
			fields["district_code"] = res.Before.DistrictCode
		}
		logRejection(ctx, string(action), err, fields)
		return
	}
	span.SetAttributes(attribute.Int("cascade_size", res.CascadeSize))
	logWithFields(ctx, logrus.InfoLevel, "hierarchy transition committed", logrus.Fields{
		"action":        action,
		"node_id":       res.After.ID,
		"district_code": res.After.DistrictCode,
		"old_role":      res.Before.Role,
		"new_role":      res.After.Role,
		"cascade_size":  res.CascadeSize,
	})
}

// Appoint moves a member from NO_ROLE to HAS_ROLE, linking the person into the
// hierarchy first when needed. Without a supplied supervisor the member keeps
// its current one, which then has to outrank the new role.
func (e *RoleTransitionEngine) Appoint(ctx context.Context, a AuditContext, in AppointInput) (*TransitionResult, error) {
	ctx, span := e.startSpan(ctx, ActionAppoint, in.NodeID)
	defer span.End()

	res, err := inTx(ctx, e.tx, func(txCtx context.Context) (*TransitionResult, error) {
		node, _, err := e.graph.EnsureNode(txCtx, in.NodeID)
		if err != nil {
			return nil, err
		}
		if node.Role.HasRank() {
			return nil, errInvalidTransition("node %s already holds %s", node.ID, node.Role)
		}
		target, ok := in.Role.Rank()
		if !ok {
			return nil, errInvalidTransition("appointment needs a ranked role, got %s", in.Role)
		}

		sup := node.SupervisorID
		switch {
		case target == leadership.RootRank:
			if in.SupervisorID != nil {
				return nil, errRootWithSupervisor(node.ID)
			}
			sup = nil
		case in.SupervisorID != nil:
			if err := e.checkSupplied(txCtx, node, *in.SupervisorID, target); err != nil {
				return nil, err
			}
			sup = in.SupervisorID
		case sup == nil:
			return nil, errDangling(node.ID, in.Role)
		}

		before, after, err := e.graph.place(txCtx, node.ID, in.Role, sup)
		if err != nil {
			return nil, err
		}
		if _, err := emit(txCtx, e.sink, a, events.ChangeRoleAppointed, &before, after); err != nil {
			return nil, err
		}
		return &TransitionResult{Action: ActionAppoint, Applied: true, Before: before, After: after}, nil
	})
	e.finish(ctx, span, ActionAppoint, resultOrNode(res, in.NodeID), err)
	return res, err
}

// Promote raises a node to a stronger rank. Subordinate edges are never touched.
func (e *RoleTransitionEngine) Promote(ctx context.Context, a AuditContext, in PromoteInput) (*TransitionResult, error) {
	ctx, span := e.startSpan(ctx, ActionPromote, in.NodeID)
	defer span.End()

	res, err := inTx(ctx, e.tx, func(txCtx context.Context) (*TransitionResult, error) {
		locked, err := e.graph.lockNodes(txCtx, in.NodeID)
		if err != nil {
			return nil, err
		}
		node := locked[in.NodeID]
		rank, ok := node.Rank()
		if !ok {
			return nil, errInvalidTransition("node %s holds no role to promote", node.ID)
		}
		if rank == leadership.RootRank {
			return nil, errInvalidTransition("%s cannot be promoted", node.Role)
		}
		target, ok := in.Role.Rank()
		if !ok || target >= rank {
			return nil, errInvalidTransition("promotion from %s must target a stronger rank, got %s", node.Role, in.Role)
		}

		var sup *uuid.UUID
		switch {
		case target == leadership.RootRank:
			if in.SupervisorID != nil {
				return nil, errRootWithSupervisor(node.ID)
			}
		case in.SupervisorID != nil:
			if err := e.checkSupplied(txCtx, node, *in.SupervisorID, target); err != nil {
				return nil, err
			}
			sup = in.SupervisorID
		case node.SupervisorID == nil:
			return nil, errDangling(node.ID, in.Role)
		default:
			current, err := e.graph.GetNode(txCtx, *node.SupervisorID)
			if err != nil {
				return nil, err
			}
			if !current.Role.Outranks(in.Role) {
				return nil, errRankOrdering("current supervisor %s (%s) does not outrank %s; supply a new supervisor",
					current.ID, current.Role, in.Role)
			}
			sup = node.SupervisorID
		}

		cascade, err := e.discovery.AllSubordinates(txCtx, node.ID)
		if err != nil {
			return nil, err
		}
		before, after, err := e.graph.place(txCtx, node.ID, in.Role, sup)
		if err != nil {
			return nil, err
		}
		if _, err := emit(txCtx, e.sink, a, events.ChangeRolePromoted, &before, after); err != nil {
			return nil, err
		}
		return &TransitionResult{
			Action:      ActionPromote,
			Applied:     true,
			Before:      before,
			After:       after,
			CascadeSize: cascade.Len(),
		}, nil
	})
	e.finish(ctx, span, ActionPromote, resultOrNode(res, in.NodeID), err)
	return res, err
}

// Demote lowers a node's rank under a mandatory new supervisor. Every direct
// subordinate must be covered by the plan.
func (e *RoleTransitionEngine) Demote(ctx context.Context, a AuditContext, in DemoteInput) (*TransitionResult, error) {
	ctx, span := e.startSpan(ctx, ActionDemote, in.NodeID)
	defer span.End()

	res, err := e.cascade(ctx, a, cascadeStep{
		action:     ActionDemote,
		changeType: events.ChangeRoleDemoted,
		nodeID:     in.NodeID,
		plan:       in.Plan,
		target: func(ctx context.Context, node leadership.Node, subtree leadership.IDSet) (leadership.Role, *uuid.UUID, error) {
			rank, ok := node.Rank()
			if !ok {
				return "", nil, errInvalidTransition("node %s holds no role to demote", node.ID)
			}
			if rank >= leadership.MaxRank {
				return "", nil, errInvalidTransition("%s is already the lowest rank", node.Role)
			}
			target, ok := in.Role.Rank()
			if !ok || target <= rank {
				return "", nil, errInvalidTransition("demotion from %s must target a weaker rank, got %s", node.Role, in.Role)
			}
			if in.SupervisorID == nil {
				return "", nil, errInvalidTransition("demotion of %s requires a new supervisor", node.ID)
			}
			if *in.SupervisorID == node.ID || subtree.Has(*in.SupervisorID) {
				return "", nil, errCycle(node.ID, *in.SupervisorID)
			}
			if err := e.checkSupplied(ctx, node, *in.SupervisorID, target); err != nil {
				return "", nil, err
			}
			return in.Role, in.SupervisorID, nil
		},
	})
	e.finish(ctx, span, ActionDemote, resultOrNode(res, in.NodeID), err)
	return res, err
}

// RemoveRole returns a leader to NO_ROLE and detaches it from the chain.
func (e *RoleTransitionEngine) RemoveRole(ctx context.Context, a AuditContext, in RemoveInput) (*TransitionResult, error) {
	ctx, span := e.startSpan(ctx, ActionRemove, in.NodeID)
	defer span.End()

	res, err := e.cascade(ctx, a, cascadeStep{
		action:     ActionRemove,
		changeType: events.ChangeRoleRemoved,
		nodeID:     in.NodeID,
		plan:       in.Plan,
		target: func(_ context.Context, node leadership.Node, _ leadership.IDSet) (leadership.Role, *uuid.UUID, error) {
			if !node.Role.HasRank() {
				return "", nil, errInvalidTransition("node %s holds no role to remove", node.ID)
			}
			return leadership.RoleNone, nil, nil
		},
	})
	e.finish(ctx, span, ActionRemove, resultOrNode(res, in.NodeID), err)
	return res, err
}

// LinkMember points a member without a role at a supervisor, or detaches it.
// Leaders move through transitions and reassignment instead.
func (e *RoleTransitionEngine) LinkMember(ctx context.Context, a AuditContext, in LinkInput) (*TransitionResult, error) {
	ctx, span := e.startSpan(ctx, ActionLink, in.NodeID)
	defer span.End()

	res, err := inTx(ctx, e.tx, func(txCtx context.Context) (*TransitionResult, error) {
		node, _, err := e.graph.EnsureNode(txCtx, in.NodeID)
		if err != nil {
			return nil, err
		}
		if node.Role.HasRank() {
			return nil, errInvalidTransition("node %s holds %s; reassign leaders instead", node.ID, node.Role)
		}
		before, after, err := e.graph.moveNode(txCtx, node.ID, in.SupervisorID)
		if err != nil {
			return nil, err
		}
		res := &TransitionResult{Action: ActionLink, Applied: true, Before: before, After: after}
		if leadership.SameSupervisor(before.SupervisorID, after.SupervisorID) {
			return res, nil
		}
		changeType := events.ChangeSupervisorReassigned
		switch {
		case after.SupervisorID == nil:
			changeType = events.ChangeSupervisorCleared
		case before.SupervisorID == nil:
			changeType = events.ChangeSupervisorAssigned
		}
		if _, err := emit(txCtx, e.sink, a, changeType, &before, after); err != nil {
			return nil, err
		}
		return res, nil
	})
	e.finish(ctx, span, ActionLink, resultOrNode(res, in.NodeID), err)
	return res, err
}

// checkSupplied validates a caller-chosen supervisor for node at the target rank.
func (e *RoleTransitionEngine) checkSupplied(ctx context.Context, node leadership.Node, supervisorID uuid.UUID, targetRank int) error {
	if supervisorID == node.ID {
		return errCycle(node.ID, supervisorID)
	}
	sup, err := e.graph.GetNode(ctx, supervisorID)
	if err != nil {
		return err
	}
	return CheckEligible(sup, node.DistrictCode, targetRank-1, leadership.NewIDSet(node.ID))
}

type cascadeStep struct {
	action     TransitionAction
	changeType string
	nodeID     uuid.UUID
	plan       *ReassignmentPlan
	// target checks the preconditions against the locked node and returns its
	// new placement. subtree is every transitive subordinate before the change.
	target func(ctx context.Context, node leadership.Node, subtree leadership.IDSet) (leadership.Role, *uuid.UUID, error)
}

type cascadeState struct {
	node    leadership.Node
	role    leadership.Role
	sup     *uuid.UUID
	subtree leadership.IDSet
	items   []Assignment
	exclude leadership.IDSet
}

// prepare checks preconditions and the plan against the current direct
// subordinates. It runs inside a transaction and writes nothing.
func (e *RoleTransitionEngine) prepare(ctx context.Context, step cascadeStep) (*cascadeState, error) {
	locked, err := e.graph.lockNodes(ctx, step.nodeID)
	if err != nil {
		return nil, err
	}
	node := locked[step.nodeID]

	subtree, err := e.discovery.AllSubordinates(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	role, sup, err := step.target(ctx, node, subtree)
	if err != nil {
		return nil, err
	}

	subs, err := e.graph.GetDirectSubordinates(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	items, err := planAssignments(node.ID, subs, step.plan)
	if err != nil {
		return nil, err
	}

	exclude := leadership.NewIDSet(node.ID)
	for _, s := range subs {
		exclude.Add(s.ID)
	}
	return &cascadeState{
		node:    node,
		role:    role,
		sup:     sup,
		subtree: subtree,
		items:   items,
		exclude: exclude,
	}, nil
}

func (e *RoleTransitionEngine) cascade(ctx context.Context, a AuditContext, step cascadeStep) (*TransitionResult, error) {
	edgeAudit := a.causedBy(step.nodeID)

	if step.plan == nil || step.plan.Mode != ReassignmentIndividual {
		return inTx(ctx, e.tx, func(txCtx context.Context) (*TransitionResult, error) {
			st, err := e.prepare(txCtx, step)
			if err != nil {
				return nil, err
			}
			var rr *ReassignmentResult
			if len(st.items) > 0 {
				rr, err = e.executor.applyAll(txCtx, edgeAudit, st.items, st.exclude)
				if err != nil {
					return nil, err
				}
			}
			res, err := e.commitNode(txCtx, a, step, st)
			if err != nil {
				return nil, err
			}
			for range st.items {
				recordReassignment(ReassignmentBulk, true)
			}
			res.Reassignment = rr
			return res, nil
		})
	}

	st, err := inTx(ctx, e.tx, func(txCtx context.Context) (*cascadeState, error) {
		return e.prepare(txCtx, step)
	})
	if err != nil {
		return nil, err
	}

	rr := e.executor.each(ctx, edgeAudit, st.items, st.exclude)
	if !rr.OK() {
		return &TransitionResult{
			Action:       step.action,
			Applied:      false,
			Before:       st.node,
			After:        st.node,
			CascadeSize:  st.subtree.Len(),
			Reassignment: rr,
		}, rr.firstFailure()
	}

	res, err := inTx(ctx, e.tx, func(txCtx context.Context) (*TransitionResult, error) {
		again, err := e.prepare(txCtx, cascadeStep{
			action:     step.action,
			changeType: step.changeType,
			nodeID:     step.nodeID,
			target:     step.target,
			plan:       &ReassignmentPlan{Mode: ReassignmentIndividual},
		})
		if err != nil {
			return nil, err
		}
		again.subtree = st.subtree
		return e.commitNode(txCtx, a, step, again)
	})
	if err != nil {
		return nil, err
	}
	res.Reassignment = rr
	return res, nil
}

func (e *RoleTransitionEngine) commitNode(ctx context.Context, a AuditContext, step cascadeStep, st *cascadeState) (*TransitionResult, error) {
	before, after, err := e.graph.place(ctx, st.node.ID, st.role, st.sup)
	if err != nil {
		return nil, err
	}
	if _, err := emit(ctx, e.sink, a, step.changeType, &before, after); err != nil {
		return nil, err
	}
	return &TransitionResult{
		Action:      step.action,
		Applied:     true,
		Before:      before,
		After:       after,
		CascadeSize: st.subtree.Len(),
	}, nil
}

// planAssignments turns a plan into one edge per direct subordinate. Every
// direct subordinate must be covered and nothing else may be named.
func planAssignments(nodeID uuid.UUID, subs []leadership.Node, plan *ReassignmentPlan) ([]Assignment, error) {
	subIDs := make([]uuid.UUID, 0, len(subs))
	subSet := leadership.NewIDSet()
	for _, s := range subs {
		subIDs = append(subIDs, s.ID)
		subSet.Add(s.ID)
	}
	leadership.SortIDs(subIDs)

	if plan == nil {
		if len(subs) > 0 {
			return nil, errReassignmentRequired(nodeID, subIDs)
		}
		return nil, nil
	}

	switch plan.Mode {
	case ReassignmentBulk:
		if len(subs) == 0 {
			return nil, nil
		}
		if plan.SupervisorID == uuid.Nil {
			return nil, errInvalidBody("bulk reassignment needs a supervisor_id")
		}
		out := make([]Assignment, 0, len(subIDs))
		for _, id := range subIDs {
			out = append(out, Assignment{SubordinateID: id, SupervisorID: plan.SupervisorID})
		}
		return out, nil
	case ReassignmentIndividual:
		covered := leadership.NewIDSet()
		out := make([]Assignment, 0, len(plan.Assignments))
		for _, as := range plan.Assignments {
			if !subSet.Has(as.SubordinateID) {
				return nil, errInvalidTransition("%s is not a direct subordinate of %s", as.SubordinateID, nodeID)
			}
			if covered.Has(as.SubordinateID) {
				return nil, errInvalidBody("subordinate %s listed twice", as.SubordinateID)
			}
			if as.SupervisorID == uuid.Nil {
				return nil, errInvalidBody("assignment for %s needs a supervisor_id", as.SubordinateID)
			}
			covered.Add(as.SubordinateID)
			out = append(out, as)
		}
		var missing []uuid.UUID
		for _, id := range subIDs {
			if !covered.Has(id) {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return nil, errReassignmentRequired(nodeID, missing)
		}
		return out, nil
	default:
		return nil, errInvalidBody("unknown reassignment mode %q", plan.Mode)
	}
}

func resultOrNode(res *TransitionResult, id uuid.UUID) *TransitionResult {
	if res != nil {
		return res
	}
	return &TransitionResult{Before: leadership.Node{ID: id}, After: leadership.Node{ID: id}}
}
