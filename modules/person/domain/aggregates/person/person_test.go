package person

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Normalizes(t *testing.T) {
	t.Parallel()

	p := New(" 0042 ", " Radha Devi ", " D1 ")
	require.Equal(t, "0042", p.Pernr())
	require.Equal(t, "D1", p.DistrictCode())
	require.True(t, p.Active())
	require.Equal(t, "Radha Devi (0042)", p.Label())
}

func TestCreateDTO_Ok(t *testing.T) {
	t.Parallel()

	dto := &CreateDTO{Pernr: " 7 ", DisplayName: "Gopal", DistrictCode: " D2 "}
	errs, ok := dto.Ok()
	require.True(t, ok)
	require.Empty(t, errs)
	require.Equal(t, "D2", dto.DistrictCode)

	dto = &CreateDTO{Pernr: "7", DisplayName: "  "}
	errs, ok = dto.Ok()
	require.False(t, ok)
	require.Equal(t, "required", errs["DisplayName"])
	require.Equal(t, "required", errs["DistrictCode"])
}
