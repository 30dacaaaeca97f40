package person

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("person not found")
	ErrPernrTaken = errors.New("person number already taken")
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Person is a devotee record. Only active persons can hold a place in the
// leadership hierarchy.
type Person struct {
	id           uuid.UUID
	pernr        string
	displayName  string
	districtCode string
	status       Status
	createdAt    time.Time
	updatedAt    time.Time
}

func New(pernr, displayName, districtCode string) Person {
	return Person{
		pernr:        strings.TrimSpace(pernr),
		displayName:  strings.TrimSpace(displayName),
		districtCode: strings.TrimSpace(districtCode),
		status:       StatusActive,
	}
}

func Hydrate(
	id uuid.UUID,
	pernr string,
	displayName string,
	districtCode string,
	status Status,
	createdAt time.Time,
	updatedAt time.Time,
) Person {
	return Person{
		id:           id,
		pernr:        pernr,
		displayName:  displayName,
		districtCode: districtCode,
		status:       status,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (p Person) ID() uuid.UUID        { return p.id }
func (p Person) Pernr() string        { return p.pernr }
func (p Person) DisplayName() string  { return p.displayName }
func (p Person) DistrictCode() string { return p.districtCode }
func (p Person) Status() Status       { return p.status }
func (p Person) CreatedAt() time.Time { return p.createdAt }
func (p Person) UpdatedAt() time.Time { return p.updatedAt }
func (p Person) Active() bool         { return p.status == StatusActive }

// Label is the human readable name shown next to hierarchy nodes.
func (p Person) Label() string {
	if p.pernr == "" {
		return p.displayName
	}
	return p.displayName + " (" + p.pernr + ")"
}
