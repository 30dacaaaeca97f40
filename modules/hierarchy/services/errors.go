package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

const (
	CodeNotFound                 = "HIERARCHY_NOT_FOUND"
	CodeInvalidRankOrdering      = "HIERARCHY_INVALID_RANK_ORDERING"
	CodeCrossDistrict            = "HIERARCHY_CROSS_DISTRICT"
	CodeRootMustHaveNoSupervisor = "HIERARCHY_ROOT_MUST_HAVE_NO_SUPERVISOR"
	CodeDanglingSupervisor       = "HIERARCHY_DANGLING_SUPERVISOR"
	CodeCycleDetected            = "HIERARCHY_CYCLE_DETECTED"
	CodeInvalidTransition        = "HIERARCHY_INVALID_TRANSITION"
	CodeReassignmentRequired     = "HIERARCHY_REASSIGNMENT_REQUIRED"
	CodePartialValidationFailure = "HIERARCHY_PARTIAL_VALIDATION_FAILURE"
	CodeIneligibleSupervisor     = "HIERARCHY_INELIGIBLE_SUPERVISOR"
	CodeInvalidBody              = "HIERARCHY_INVALID_BODY"
	CodeDiscoveryLimit           = "HIERARCHY_DISCOVERY_LIMIT"
	CodeConflict                 = "HIERARCHY_CONFLICT"
	CodeInternal                 = "HIERARCHY_INTERNAL"
)

// Sentinels for errors.Is. A *ServiceError matches any sentinel carrying the same code.
var (
	ErrNotFound                 = newServiceError(http.StatusNotFound, CodeNotFound, "node not found", nil)
	ErrInvalidRankOrdering      = newServiceError(http.StatusUnprocessableEntity, CodeInvalidRankOrdering, "invalid rank ordering", nil)
	ErrCrossDistrict            = newServiceError(http.StatusUnprocessableEntity, CodeCrossDistrict, "cross district edge", nil)
	ErrRootMustHaveNoSupervisor = newServiceError(http.StatusUnprocessableEntity, CodeRootMustHaveNoSupervisor, "district supervisor must have no supervisor", nil)
	ErrDanglingSupervisor       = newServiceError(http.StatusUnprocessableEntity, CodeDanglingSupervisor, "role requires a supervisor", nil)
	ErrCycleDetected            = newServiceError(http.StatusUnprocessableEntity, CodeCycleDetected, "supervisor cycle", nil)
	ErrInvalidTransition        = newServiceError(http.StatusConflict, CodeInvalidTransition, "invalid transition", nil)
	ErrReassignmentRequired     = newServiceError(http.StatusConflict, CodeReassignmentRequired, "reassignment required", nil)
	ErrPartialValidationFailure = newServiceError(http.StatusConflict, CodePartialValidationFailure, "reassignment validation failed", nil)
	ErrIneligibleSupervisor     = newServiceError(http.StatusUnprocessableEntity, CodeIneligibleSupervisor, "ineligible supervisor", nil)
	ErrInvalidBody              = newServiceError(http.StatusBadRequest, CodeInvalidBody, "invalid request body", nil)
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
	Meta    map[string]string
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code
}

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func (e *ServiceError) withMeta(key, value string) *ServiceError {
	if e.Meta == nil {
		e.Meta = map[string]string{}
	}
	e.Meta[key] = value
	return e
}

// ErrorCode returns the code of the outermost ServiceError in err's chain.
func ErrorCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return CodeInternal
}

func errNotFound(id uuid.UUID) *ServiceError {
	return newServiceError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("node %s not found", id), nil).
		withMeta("node_id", id.String())
}

func errRankOrdering(format string, args ...any) *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, CodeInvalidRankOrdering, fmt.Sprintf(format, args...), nil)
}

func errCrossDistrict(sub, sup leadership.Node) *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, CodeCrossDistrict,
		fmt.Sprintf("node %s in district %s cannot report to %s in district %s", sub.ID, sub.DistrictCode, sup.ID, sup.DistrictCode), nil)
}

func errRootWithSupervisor(id uuid.UUID) *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, CodeRootMustHaveNoSupervisor,
		fmt.Sprintf("node %s cannot be district supervisor while it has a supervisor", id), nil)
}

func errDangling(id uuid.UUID, role leadership.Role) *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, CodeDanglingSupervisor,
		fmt.Sprintf("node %s cannot hold %s without a supervisor", id, role), nil)
}

func errCycle(sub, sup uuid.UUID) *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, CodeCycleDetected,
		fmt.Sprintf("node %s cannot report to %s: %s is inside its own subtree", sub, sup, sup), nil)
}

func errInvalidTransition(format string, args ...any) *ServiceError {
	return newServiceError(http.StatusConflict, CodeInvalidTransition, fmt.Sprintf(format, args...), nil)
}

func errReassignmentRequired(nodeID uuid.UUID, missing []uuid.UUID) *ServiceError {
	e := newServiceError(http.StatusConflict, CodeReassignmentRequired,
		fmt.Sprintf("node %s has %d direct subordinate(s) without a new supervisor", nodeID, len(missing)), nil)
	return e.withMeta("unassigned", joinIDs(missing))
}

func errIneligible(candidate uuid.UUID, format string, args ...any) *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, CodeIneligibleSupervisor, fmt.Sprintf(format, args...), nil).
		withMeta("supervisor_id", candidate.String())
}

func errInvalidBody(format string, args ...any) *ServiceError {
	return newServiceError(http.StatusBadRequest, CodeInvalidBody, fmt.Sprintf(format, args...), nil)
}

// errPartial wraps the first failing edge of a bulk reassignment.
func errPartial(subordinateID uuid.UUID, cause error) *ServiceError {
	e := newServiceError(http.StatusConflict, CodePartialValidationFailure,
		fmt.Sprintf("reassignment of %s rejected", subordinateID), cause)
	return e.withMeta("subordinate_id", subordinateID.String()).withMeta("reason_code", ErrorCode(cause))
}

func joinIDs(ids []uuid.UUID) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id.String()
	}
	return out
}
