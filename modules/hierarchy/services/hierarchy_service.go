package services

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
	"github.com/devotee-admin/hierarchy/pkg/composables"
)

// NodeView is the read shape handed to callers.
type NodeView struct {
	ID           uuid.UUID
	DistrictCode string
	Role         leadership.Role
	Rank         *int
	SupervisorID *uuid.UUID
	Label        string
}

// HierarchyService is the entry point used by controllers and the CLI. Request id
// and initiator are read from the context; every mutation needs a reason.
type HierarchyService struct {
	graph     *HierarchyGraph
	discovery *SubordinateDiscovery
	resolver  *EligibilityResolver
	executor  *ReassignmentExecutor
	engine    *RoleTransitionEngine
	people    PersonDirectory
}

func NewHierarchyService(repo HierarchyRepository, people PersonDirectory, tx Transactor, sink EventSink, discoveryMaxNodes int) *HierarchyService {
	graph := NewHierarchyGraph(repo, people)
	discovery := NewSubordinateDiscovery(graph, discoveryMaxNodes)
	executor := NewReassignmentExecutor(graph, tx, sink)
	return &HierarchyService{
		graph:     graph,
		discovery: discovery,
		resolver:  NewEligibilityResolver(repo),
		executor:  executor,
		engine:    NewRoleTransitionEngine(graph, discovery, executor, tx, sink),
		people:    people,
	}
}

func (s *HierarchyService) audit(ctx context.Context, reason string) (AuditContext, error) {
	requestID, _ := composables.UseRequestID(ctx)
	return NewAuditContext(requestID, composables.UseInitiator(ctx), reason)
}

func (s *HierarchyService) GetNode(ctx context.Context, id uuid.UUID) (NodeView, error) {
	n, err := s.graph.GetNode(ctx, id)
	if err != nil {
		return NodeView{}, err
	}
	views, err := s.views(ctx, []leadership.Node{n})
	if err != nil {
		return NodeView{}, err
	}
	return views[0], nil
}

func (s *HierarchyService) ListDirectSubordinates(ctx context.Context, id uuid.UUID) ([]NodeView, error) {
	nodes, err := s.graph.GetDirectSubordinates(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, nodes)
}

// ListAllSubordinates is the impact preview: every node below id.
func (s *HierarchyService) ListAllSubordinates(ctx context.Context, id uuid.UUID) ([]NodeView, error) {
	nodes, err := s.discovery.AllSubordinateNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, nodes)
}

func (s *HierarchyService) FindEligibleSupervisors(ctx context.Context, districtCode string, maxRank int, excludeIDs []uuid.UUID) ([]NodeView, error) {
	nodes, err := s.resolver.FindCandidates(ctx, districtCode, maxRank, leadership.NewIDSet(excludeIDs...))
	if err != nil {
		return nil, err
	}
	return s.views(ctx, nodes)
}

func (s *HierarchyService) Appoint(ctx context.Context, in AppointInput, reason string) (*TransitionResult, error) {
	a, err := s.audit(ctx, reason)
	if err != nil {
		return nil, err
	}
	return s.engine.Appoint(ctx, a, in)
}

func (s *HierarchyService) Promote(ctx context.Context, in PromoteInput, reason string) (*TransitionResult, error) {
	a, err := s.audit(ctx, reason)
	if err != nil {
		return nil, err
	}
	return s.engine.Promote(ctx, a, in)
}

func (s *HierarchyService) Demote(ctx context.Context, in DemoteInput, reason string) (*TransitionResult, error) {
	a, err := s.audit(ctx, reason)
	if err != nil {
		return nil, err
	}
	return s.engine.Demote(ctx, a, in)
}

func (s *HierarchyService) RemoveRole(ctx context.Context, in RemoveInput, reason string) (*TransitionResult, error) {
	a, err := s.audit(ctx, reason)
	if err != nil {
		return nil, err
	}
	return s.engine.RemoveRole(ctx, a, in)
}

func (s *HierarchyService) LinkMember(ctx context.Context, in LinkInput, reason string) (*TransitionResult, error) {
	a, err := s.audit(ctx, reason)
	if err != nil {
		return nil, err
	}
	return s.engine.LinkMember(ctx, a, in)
}

func (s *HierarchyService) ReassignSubordinates(ctx context.Context, req ReassignmentRequest, reason string) (*ReassignmentResult, error) {
	a, err := s.audit(ctx, reason)
	if err != nil {
		return nil, err
	}
	return s.executor.Reassign(ctx, a, req)
}

func (s *HierarchyService) CheckDistrict(ctx context.Context, districtCode string) ([]leadership.Violation, error) {
	if districtCode == "" {
		return nil, errInvalidBody("district_code is required")
	}
	return s.graph.CheckDistrict(ctx, districtCode)
}

// ListDistrict returns every node of a district ordered by rank, members last.
func (s *HierarchyService) ListDistrict(ctx context.Context, districtCode string) ([]NodeView, error) {
	if districtCode == "" {
		return nil, errInvalidBody("district_code is required")
	}
	nodes, err := s.graph.ListDistrict(ctx, districtCode)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, nodes)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(views, func(a, b NodeView) int {
		switch {
		case a.Rank == nil && b.Rank == nil:
			return strings.Compare(a.Label, b.Label)
		case a.Rank == nil:
			return 1
		case b.Rank == nil:
			return -1
		case *a.Rank != *b.Rank:
			return *a.Rank - *b.Rank
		}
		return strings.Compare(a.Label, b.Label)
	})
	return views, nil
}

// Views maps nodes to their read shape, with person labels when a directory is wired.
func (s *HierarchyService) Views(ctx context.Context, nodes []leadership.Node) ([]NodeView, error) {
	return s.views(ctx, nodes)
}

func (s *HierarchyService) views(ctx context.Context, nodes []leadership.Node) ([]NodeView, error) {
	var labels map[uuid.UUID]string
	if s.people != nil && len(nodes) > 0 {
		ids := make([]uuid.UUID, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		var err error
		labels, err = s.people.Labels(ctx, ids)
		if err != nil {
			return nil, err
		}
	}
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		v := NodeView{
			ID:           n.ID,
			DistrictCode: n.DistrictCode,
			Role:         n.Role,
			SupervisorID: leadership.CloneID(n.SupervisorID),
			Label:        labels[n.ID],
		}
		if rank, ok := n.Rank(); ok {
			v.Rank = &rank
		}
		out = append(out, v)
	}
	return out, nil
}
