package simulate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    Plan
		wantErr bool
	}{
		{name: "single level", in: "5", want: Plan{5}},
		{name: "nested", in: "3x4x10", want: Plan{3, 4, 10}},
		{name: "upper case and spaces", in: " 2 X 3 ", want: Plan{2, 3}},
		{name: "empty part allowed below root", in: "2x0", want: Plan{2, 0}},
		{name: "empty", in: "", wantErr: true},
		{name: "zero root", in: "0x3", wantErr: true},
		{name: "negative", in: "2x-1", wantErr: true},
		{name: "not a number", in: "2xq", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePlan(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPlan)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPlanStepsAndString(t *testing.T) {
	t.Parallel()

	require.Equal(t, 120, Plan{3, 4, 10}.Steps())
	require.Equal(t, 0, Plan{}.Steps())
	require.Equal(t, "3x4x10", Plan{3, 4, 10}.String())
}
