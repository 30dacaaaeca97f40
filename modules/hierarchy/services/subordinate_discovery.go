package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

const tracerName = "hierarchy"

// DefaultDiscoveryMaxNodes bounds a single transitive walk.
const DefaultDiscoveryMaxNodes = 5000

// SubordinateDiscovery answers "who reports to this node" questions. It never writes.
type SubordinateDiscovery struct {
	graph    *HierarchyGraph
	maxNodes int
}

func NewSubordinateDiscovery(graph *HierarchyGraph, maxNodes int) *SubordinateDiscovery {
	if maxNodes <= 0 {
		maxNodes = DefaultDiscoveryMaxNodes
	}
	return &SubordinateDiscovery{graph: graph, maxNodes: maxNodes}
}

func (d *SubordinateDiscovery) DirectSubordinates(ctx context.Context, id uuid.UUID) (leadership.IDSet, error) {
	subs, err := d.graph.GetDirectSubordinates(ctx, id)
	if err != nil {
		return nil, err
	}
	out := leadership.NewIDSet()
	for _, n := range subs {
		out.Add(n.ID)
	}
	return out, nil
}

// AllSubordinates returns the transitive closure below id. The walk goes level by
// level, one query per level, and never revisits a node.
func (d *SubordinateDiscovery) AllSubordinates(ctx context.Context, id uuid.UUID) (leadership.IDSet, error) {
	nodes, err := d.AllSubordinateNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(leadership.IDSet, len(nodes))
	for _, n := range nodes {
		out.Add(n.ID)
	}
	return out, nil
}

// AllSubordinateNodes is AllSubordinates returning the nodes themselves, in
// discovery order. Callers must not rely on that order.
func (d *SubordinateDiscovery) AllSubordinateNodes(ctx context.Context, id uuid.UUID) ([]leadership.Node, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "hierarchy.SubordinateDiscovery.AllSubordinates",
		trace.WithAttributes(attribute.String("node_id", id.String())),
	)
	defer span.End()

	if _, err := d.graph.GetNode(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "root lookup failed")
		return nil, err
	}

	visited := leadership.NewIDSet(id)
	var out []leadership.Node
	frontier := []uuid.UUID{id}
	levels := 0
	for len(frontier) > 0 {
		children, err := d.graph.repo.ListBySupervisors(ctx, frontier)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "level query failed")
			return nil, mapPgError(err)
		}
		levels++

		next := make([]uuid.UUID, 0, len(children))
		for _, child := range children {
			if visited.Has(child.ID) {
				continue
			}
			visited.Add(child.ID)
			out = append(out, child)
			next = append(next, child.ID)
		}
		if len(out) > d.maxNodes {
			err := newServiceError(http.StatusUnprocessableEntity, CodeDiscoveryLimit,
				fmt.Sprintf("subtree of %s exceeds %d nodes", id, d.maxNodes), nil).
				withMeta("node_id", id.String())
			span.RecordError(err)
			span.SetStatus(codes.Error, "discovery limit")
			return nil, err
		}
		frontier = next
	}

	recordDiscoverySize(len(out))
	span.SetAttributes(
		attribute.Int("subtree_size", len(out)),
		attribute.Int("levels", levels),
	)
	span.SetStatus(codes.Ok, "")
	return out, nil
}
