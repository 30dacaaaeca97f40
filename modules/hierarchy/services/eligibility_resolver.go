package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

// EligibilityResolver lists the nodes that may legally supervise someone.
type EligibilityResolver struct {
	repo HierarchyRepository
}

func NewEligibilityResolver(repo HierarchyRepository) *EligibilityResolver {
	return &EligibilityResolver{repo: repo}
}

// FindCandidates returns same-district leaders with rank <= maxRank that are not in
// exclude, highest authority first. No candidates is not an error.
func (r *EligibilityResolver) FindCandidates(ctx context.Context, districtCode string, maxRank int, exclude leadership.IDSet) ([]leadership.Node, error) {
	districtCode = strings.TrimSpace(districtCode)
	if districtCode == "" {
		return nil, errInvalidBody("district_code is required")
	}
	if maxRank < leadership.RootRank {
		return nil, errInvalidBody("max_rank must be between %d and %d", leadership.RootRank, leadership.MaxRank)
	}

	nodes, err := r.repo.ListByRoles(ctx, districtCode, leadership.RolesUpTo(maxRank))
	if err != nil {
		return nil, mapPgError(err)
	}
	out := make([]leadership.Node, 0, len(nodes))
	for _, n := range nodes {
		if CheckEligible(n, districtCode, maxRank, exclude) == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// CheckEligible applies the FindCandidates filter to a single node. Failures carry
// the invariant the edge would break, so callers can report it per subordinate.
func CheckEligible(candidate leadership.Node, districtCode string, maxRank int, exclude leadership.IDSet) error {
	if candidate.DistrictCode != districtCode {
		return newServiceError(http.StatusUnprocessableEntity, CodeCrossDistrict,
			fmt.Sprintf("supervisor %s is in district %s, not %s", candidate.ID, candidate.DistrictCode, districtCode), nil).
			withMeta("supervisor_id", candidate.ID.String())
	}
	rank, ok := candidate.Rank()
	if !ok {
		return errRankOrdering("supervisor %s holds no role", candidate.ID).
			withMeta("supervisor_id", candidate.ID.String())
	}
	if rank > maxRank {
		return errRankOrdering("supervisor %s has rank %d, rank %d or higher authority is required", candidate.ID, rank, maxRank).
			withMeta("supervisor_id", candidate.ID.String())
	}
	if exclude.Has(candidate.ID) {
		return errIneligible(candidate.ID, "supervisor %s is excluded from this reassignment", candidate.ID)
	}
	return nil
}

// MaxRankFor is the weakest rank that may still supervise sub.
func MaxRankFor(sub leadership.Node) int {
	if rank, ok := sub.Rank(); ok {
		return rank - 1
	}
	return leadership.MaxRank
}
