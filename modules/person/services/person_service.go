package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/person/domain/aggregates/person"
)

// ValidationError lists the dto fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, rule := range e.Fields {
		parts = append(parts, f+"="+rule)
	}
	return "invalid person: " + strings.Join(parts, ", ")
}

type PersonService struct {
	repo person.Repository
}

func NewPersonService(repo person.Repository) *PersonService {
	return &PersonService{repo: repo}
}

func (s *PersonService) GetByID(ctx context.Context, id uuid.UUID) (person.Person, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PersonService) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]person.Person, error) {
	return s.repo.ListByIDs(ctx, ids)
}

func (s *PersonService) Create(ctx context.Context, dto *person.CreateDTO) (person.Person, error) {
	if dto == nil {
		return person.Person{}, errors.New("missing dto")
	}
	if fields, ok := dto.Ok(); !ok {
		return person.Person{}, &ValidationError{Fields: fields}
	}
	created, err := s.repo.Create(ctx, person.New(dto.Pernr, dto.DisplayName, dto.DistrictCode))
	if err != nil {
		return person.Person{}, fmt.Errorf("create person %s: %w", dto.Pernr, err)
	}
	return created, nil
}
