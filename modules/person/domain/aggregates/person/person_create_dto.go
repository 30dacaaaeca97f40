package person

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/devotee-admin/hierarchy/pkg/constants"
)

type CreateDTO struct {
	Pernr        string `json:"pernr" validate:"required,max=32"`
	DisplayName  string `json:"display_name" validate:"required,max=200"`
	DistrictCode string `json:"district_code" validate:"required,max=32"`
}

func (d *CreateDTO) Normalize() {
	d.Pernr = strings.TrimSpace(d.Pernr)
	d.DisplayName = strings.TrimSpace(d.DisplayName)
	d.DistrictCode = strings.TrimSpace(d.DistrictCode)
}

// Ok normalizes the dto and returns field -> failed rule for every violation.
func (d *CreateDTO) Ok() (map[string]string, bool) {
	d.Normalize()
	err := constants.Validate.Struct(d)
	if err == nil {
		return map[string]string{}, true
	}
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if ok := asValidationErrors(err, &verrs); !ok {
		out["_"] = err.Error()
		return out, false
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out, false
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
