package controllers

import (
	"strings"

	"github.com/go-playground/form"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
	"github.com/devotee-admin/hierarchy/pkg/constants"
)

var queryDecoder = form.NewDecoder()

// candidatesQuery accepts exclude both repeated and comma separated.
type candidatesQuery struct {
	DistrictCode string   `form:"district_code"`
	MaxRank      *int     `form:"max_rank"`
	Exclude      []string `form:"exclude"`
	Query        string   `form:"q"`
}

func (q candidatesQuery) excludeIDs() ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, raw := range q.Exclude {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
	}
	return out, nil
}

type assignmentDTO struct {
	SubordinateID string `json:"subordinate_id" validate:"required,uuid"`
	SupervisorID  string `json:"supervisor_id" validate:"required,uuid"`
}

type planDTO struct {
	Mode         string          `json:"mode" validate:"required,oneof=bulk individual"`
	SupervisorID string          `json:"supervisor_id" validate:"omitempty,uuid"`
	Assignments  []assignmentDTO `json:"assignments" validate:"dive"`
}

type placementDTO struct {
	NodeID       string   `json:"node_id" validate:"required,uuid"`
	Role         string   `json:"role"`
	SupervisorID *string  `json:"supervisor_id" validate:"omitempty,uuid"`
	Plan         *planDTO `json:"plan"`
	Reason       string   `json:"reason" validate:"required,max=500"`
}

type reassignDTO struct {
	Mode           string          `json:"mode" validate:"required,oneof=bulk individual"`
	SupervisorID   string          `json:"supervisor_id" validate:"omitempty,uuid"`
	SubordinateIDs []string        `json:"subordinate_ids" validate:"dive,uuid"`
	Assignments    []assignmentDTO `json:"assignments" validate:"dive"`
	Reason         string          `json:"reason" validate:"required,max=500"`
}

// validate returns the first failing field and rule, or "" when s is valid.
func validate(s any) string {
	err := constants.Validate.Struct(s)
	if err == nil {
		return ""
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return strings.ToLower(fe.Field()) + ": " + fe.Tag()
}

func (d *placementDTO) normalize() {
	d.NodeID = strings.TrimSpace(d.NodeID)
	d.Role = strings.TrimSpace(d.Role)
	d.Reason = strings.TrimSpace(d.Reason)
	if d.SupervisorID != nil {
		v := strings.TrimSpace(*d.SupervisorID)
		if v == "" {
			d.SupervisorID = nil
		} else {
			d.SupervisorID = &v
		}
	}
}

func (d *placementDTO) nodeID() uuid.UUID {
	return uuid.MustParse(d.NodeID)
}

func (d *placementDTO) supervisorID() *uuid.UUID {
	if d.SupervisorID == nil {
		return nil
	}
	id := uuid.MustParse(*d.SupervisorID)
	return &id
}

func (d *placementDTO) role() (leadership.Role, error) {
	return leadership.ParseRole(d.Role)
}

func (d *planDTO) toPlan() *services.ReassignmentPlan {
	if d == nil {
		return nil
	}
	plan := &services.ReassignmentPlan{Mode: services.ReassignmentMode(d.Mode)}
	if d.SupervisorID != "" {
		plan.SupervisorID = uuid.MustParse(d.SupervisorID)
	}
	plan.Assignments = toAssignments(d.Assignments)
	return plan
}

func (d *reassignDTO) toRequest() services.ReassignmentRequest {
	req := services.ReassignmentRequest{Mode: services.ReassignmentMode(d.Mode)}
	if d.SupervisorID != "" {
		req.SupervisorID = uuid.MustParse(d.SupervisorID)
	}
	for _, id := range d.SubordinateIDs {
		req.SubordinateIDs = append(req.SubordinateIDs, uuid.MustParse(id))
	}
	req.Assignments = toAssignments(d.Assignments)
	return req
}

func toAssignments(in []assignmentDTO) []services.Assignment {
	out := make([]services.Assignment, 0, len(in))
	for _, a := range in {
		out = append(out, services.Assignment{
			SubordinateID: uuid.MustParse(a.SubordinateID),
			SupervisorID:  uuid.MustParse(a.SupervisorID),
		})
	}
	return out
}

type nodeResponse struct {
	ID           uuid.UUID  `json:"node_id"`
	DistrictCode string     `json:"district_code"`
	Role         string     `json:"role"`
	Rank         *int       `json:"rank"`
	SupervisorID *uuid.UUID `json:"supervisor_id"`
	Label        string     `json:"label,omitempty"`
}

func toNodeResponse(v services.NodeView) nodeResponse {
	return nodeResponse{
		ID:           v.ID,
		DistrictCode: v.DistrictCode,
		Role:         v.Role.String(),
		Rank:         v.Rank,
		SupervisorID: v.SupervisorID,
		Label:        v.Label,
	}
}

func toNodeResponses(views []services.NodeView) []nodeResponse {
	out := make([]nodeResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toNodeResponse(v))
	}
	return out
}

type failureResponse struct {
	SubordinateID uuid.UUID `json:"subordinate_id"`
	SupervisorID  uuid.UUID `json:"supervisor_id"`
	Code          string    `json:"code"`
	Message       string    `json:"message"`
}

type reassignmentResponse struct {
	Mode      string            `json:"mode"`
	OK        bool              `json:"ok"`
	Succeeded []uuid.UUID       `json:"succeeded"`
	Failed    []failureResponse `json:"failed"`
}

func toReassignmentResponse(res *services.ReassignmentResult) *reassignmentResponse {
	if res == nil {
		return nil
	}
	out := &reassignmentResponse{
		Mode:      string(res.Mode),
		OK:        res.OK(),
		Succeeded: append([]uuid.UUID{}, res.Succeeded...),
		Failed:    make([]failureResponse, 0, len(res.Failed)),
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, failureResponse{
			SubordinateID: f.SubordinateID,
			SupervisorID:  f.SupervisorID,
			Code:          f.Code,
			Message:       f.Message,
		})
	}
	return out
}

type transitionResponse struct {
	Action       string                `json:"action"`
	Applied      bool                  `json:"applied"`
	Before       placementResponse     `json:"before"`
	After        placementResponse     `json:"after"`
	CascadeSize  int                   `json:"cascade_size"`
	Reassignment *reassignmentResponse `json:"reassignment,omitempty"`
}

type placementResponse struct {
	Role         string     `json:"role"`
	SupervisorID *uuid.UUID `json:"supervisor_id"`
}

func toTransitionResponse(res *services.TransitionResult) transitionResponse {
	return transitionResponse{
		Action:       string(res.Action),
		Applied:      res.Applied,
		Before:       placementResponse{Role: res.Before.Role.String(), SupervisorID: res.Before.SupervisorID},
		After:        placementResponse{Role: res.After.Role.String(), SupervisorID: res.After.SupervisorID},
		CascadeSize:  res.CascadeSize,
		Reassignment: toReassignmentResponse(res.Reassignment),
	}
}
