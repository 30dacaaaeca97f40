package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
	"github.com/devotee-admin/hierarchy/pkg/application"
	"github.com/devotee-admin/hierarchy/pkg/composables"
	"github.com/devotee-admin/hierarchy/pkg/httpapi"
)

const maxBodyBytes = 1 << 20

type HierarchyAPIController struct {
	app       application.Application
	hierarchy *services.HierarchyService
	basePath  string
}

func NewHierarchyAPIController(app application.Application) application.Controller {
	return &HierarchyAPIController{
		app:       app,
		hierarchy: app.Service(services.HierarchyService{}).(*services.HierarchyService),
		basePath:  "/hierarchy/api",
	}
}

func (c *HierarchyAPIController) Key() string {
	return c.basePath
}

func (c *HierarchyAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/nodes/{id}", c.GetNode).Methods(http.MethodGet)
	router.HandleFunc("/nodes/{id}/subordinates", c.ListSubordinates).Methods(http.MethodGet)
	router.HandleFunc("/candidates", c.FindCandidates).Methods(http.MethodGet)
	router.HandleFunc("/districts/{code}:check", c.CheckDistrict).Methods(http.MethodGet)

	router.HandleFunc("/appoint", c.Appoint).Methods(http.MethodPost)
	router.HandleFunc("/promote", c.Promote).Methods(http.MethodPost)
	router.HandleFunc("/demote", c.Demote).Methods(http.MethodPost)
	router.HandleFunc("/remove", c.Remove).Methods(http.MethodPost)
	router.HandleFunc("/link", c.Link).Methods(http.MethodPost)
	router.HandleFunc("/reassign", c.Reassign).Methods(http.MethodPost)
}

func (c *HierarchyAPIController) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	view, err := c.hierarchy.GetNode(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toNodeResponse(view))
}

func (c *HierarchyAPIController) ListSubordinates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	scope := strings.TrimSpace(r.URL.Query().Get("scope"))
	var (
		views []services.NodeView
		err   error
	)
	switch scope {
	case "", "direct":
		scope = "direct"
		views, err = c.hierarchy.ListDirectSubordinates(r.Context(), id)
	case "all":
		views, err = c.hierarchy.ListAllSubordinates(r.Context(), id)
	default:
		writeBadRequest(w, r, "scope must be direct or all")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"node_id": id,
		"scope":   scope,
		"count":   len(views),
		"items":   toNodeResponses(views),
	})
}

func (c *HierarchyAPIController) FindCandidates(w http.ResponseWriter, r *http.Request) {
	var q candidatesQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		writeBadRequest(w, r, "max_rank must be an integer")
		return
	}
	if q.MaxRank == nil {
		writeBadRequest(w, r, "max_rank is required")
		return
	}
	exclude, err := q.excludeIDs()
	if err != nil {
		writeBadRequest(w, r, "exclude must be a list of uuids")
		return
	}
	views, err := c.hierarchy.FindEligibleSupervisors(r.Context(), q.DistrictCode, *q.MaxRank, exclude)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views = services.FilterByLabel(views, q.Query)
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"items": toNodeResponses(views),
	})
}

func (c *HierarchyAPIController) CheckDistrict(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(mux.Vars(r)["code"])
	violations, err := c.hierarchy.CheckDistrict(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if violations == nil {
		violations = []leadership.Violation{}
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"district_code": code,
		"valid":         len(violations) == 0,
		"violations":    violations,
	})
}

func (c *HierarchyAPIController) Appoint(w http.ResponseWriter, r *http.Request) {
	dto, ok := decodePlacement(w, r, true)
	if !ok {
		return
	}
	role, _ := dto.role()
	res, err := c.hierarchy.Appoint(r.Context(), services.AppointInput{
		NodeID:       dto.nodeID(),
		Role:         role,
		SupervisorID: dto.supervisorID(),
	}, dto.Reason)
	writeTransition(w, r, res, err)
}

func (c *HierarchyAPIController) Promote(w http.ResponseWriter, r *http.Request) {
	dto, ok := decodePlacement(w, r, true)
	if !ok {
		return
	}
	role, _ := dto.role()
	res, err := c.hierarchy.Promote(r.Context(), services.PromoteInput{
		NodeID:       dto.nodeID(),
		Role:         role,
		SupervisorID: dto.supervisorID(),
	}, dto.Reason)
	writeTransition(w, r, res, err)
}

func (c *HierarchyAPIController) Demote(w http.ResponseWriter, r *http.Request) {
	dto, ok := decodePlacement(w, r, true)
	if !ok {
		return
	}
	role, _ := dto.role()
	res, err := c.hierarchy.Demote(r.Context(), services.DemoteInput{
		NodeID:       dto.nodeID(),
		Role:         role,
		SupervisorID: dto.supervisorID(),
		Plan:         dto.Plan.toPlan(),
	}, dto.Reason)
	writeTransition(w, r, res, err)
}

func (c *HierarchyAPIController) Remove(w http.ResponseWriter, r *http.Request) {
	dto, ok := decodePlacement(w, r, false)
	if !ok {
		return
	}
	res, err := c.hierarchy.RemoveRole(r.Context(), services.RemoveInput{
		NodeID: dto.nodeID(),
		Plan:   dto.Plan.toPlan(),
	}, dto.Reason)
	writeTransition(w, r, res, err)
}

func (c *HierarchyAPIController) Link(w http.ResponseWriter, r *http.Request) {
	dto, ok := decodePlacement(w, r, false)
	if !ok {
		return
	}
	res, err := c.hierarchy.LinkMember(r.Context(), services.LinkInput{
		NodeID:       dto.nodeID(),
		SupervisorID: dto.supervisorID(),
	}, dto.Reason)
	writeTransition(w, r, res, err)
}

func (c *HierarchyAPIController) Reassign(w http.ResponseWriter, r *http.Request) {
	var dto reassignDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.Reason = strings.TrimSpace(dto.Reason)
	if msg := validate(&dto); msg != "" {
		writeBadRequest(w, r, msg)
		return
	}
	res, err := c.hierarchy.ReassignSubordinates(r.Context(), dto.toRequest(), dto.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toReassignmentResponse(res))
}

func decodePlacement(w http.ResponseWriter, r *http.Request, needsRole bool) (*placementDTO, bool) {
	var dto placementDTO
	if !decodeJSON(w, r, &dto) {
		return nil, false
	}
	dto.normalize()
	if msg := validate(&dto); msg != "" {
		writeBadRequest(w, r, msg)
		return nil, false
	}
	if needsRole {
		if _, err := dto.role(); err != nil {
			writeBadRequest(w, r, err.Error())
			return nil, false
		}
	}
	if dto.Plan != nil {
		if msg := validate(dto.Plan); msg != "" {
			writeBadRequest(w, r, "plan."+msg)
			return nil, false
		}
	}
	return &dto, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, r, "invalid json")
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeBadRequest(w, r, name+" must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

// writeTransition reports an individual-mode partial failure with the per-edge
// outcome next to the error, since the edges that succeeded stay committed.
func writeTransition(w http.ResponseWriter, r *http.Request, res *services.TransitionResult, err error) {
	var svcErr *services.ServiceError
	if err != nil && res != nil && res.Reassignment != nil && errors.As(err, &svcErr) {
		meta := requestMeta(r)
		for k, v := range svcErr.Meta {
			meta[k] = v
		}
		_ = httpapi.WriteJSON(w, svcErr.Status, map[string]any{
			"code":         svcErr.Code,
			"message":      svcErr.Error(),
			"meta":         meta,
			"reassignment": toReassignmentResponse(res.Reassignment),
		})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toTransitionResponse(res))
}

func requestMeta(r *http.Request) map[string]string {
	meta := map[string]string{}
	if id, ok := composables.UseRequestID(r.Context()); ok && id != "" {
		meta["request_id"] = id
	}
	return meta
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	_ = httpapi.WriteError(w, http.StatusBadRequest, services.CodeInvalidBody, message, requestMeta(r))
}

// writeServiceError maps service failures onto the JSON envelope. Anything that is
// not a ServiceError is logged and reported as an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	meta := requestMeta(r)
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		composables.UseLogger(r.Context()).WithError(err).Error("hierarchy api failed")
		_ = httpapi.WriteError(w, http.StatusInternalServerError, services.CodeInternal, "internal error", meta)
		return
	}
	for k, v := range svcErr.Meta {
		meta[k] = v
	}
	if svcErr.Status >= http.StatusInternalServerError {
		composables.UseLogger(r.Context()).WithFields(logrus.Fields{
			"code": svcErr.Code,
		}).WithError(err).Error("hierarchy api failed")
	}
	_ = httpapi.WriteError(w, svcErr.Status, svcErr.Code, svcErr.Error(), meta)
}
