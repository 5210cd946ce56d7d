package selection

import (
	"testing"

	"github.com/csvquery/csvjoin/internal/common"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	headers := []string{"id", "name", "a-b", "id", "city", "zip"}

	tests := []struct {
		expr string
		want []int
	}{
		{"1", []int{0}},
		{"name", []int{1}},
		{"1,3-5", []int{0, 2, 3, 4}},
		{"5-3", []int{4, 3, 2}},
		{"id[1]", []int{3}},
		{"id", []int{0}},
		{`"a-b"`, []int{2}},
		{"name-city", []int{1, 2, 3, 4}},
		{"city-", []int{4, 5}},
		{"-2", []int{0, 1}},
		{"-", []int{0, 1, 2, 3, 4, 5}},
		{"zip,1,zip", []int{5, 0, 5}},
		{`"id"[1]-6`, []int{3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sel, err := Parse(tt.expr)
			require.NoError(t, err)
			got, err := sel.Resolve(headers, true)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.expr, sel.String())
		})
	}
}

func TestResolveErrors(t *testing.T) {
	headers := []string{"id", "name", "id"}

	tests := []struct {
		name       string
		expr       string
		hasHeaders bool
		errorMsg   string
	}{
		{"index zero", "0", true, "out of bounds"},
		{"index too large", "4", true, "out of bounds"},
		{"unknown name", "nope", true, "does not exist"},
		{"occurrence too large", "id[2]", true, "only appears 2 time(s)"},
		{"names without headers", "id", false, "--no-headers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := MustParse(tt.expr)
			_, err := sel.Resolve(headers, tt.hasHeaders)
			require.Error(t, err)
			require.True(t, common.IsUsage(err))
			require.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestResolveIndexWithoutHeaders(t *testing.T) {
	got, err := MustParse("2,1").Resolve([]string{"x", "y"}, false)
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, got)
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{"", "  ", "1,,2", `"open`, "a[1", "a[x]", "[1]", "1,"} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			require.Error(t, err)
			require.True(t, common.IsUsage(err))
		})
	}
}

func TestParseQuotedEscapes(t *testing.T) {
	got, err := MustParse(`"say ""hi""",2`).Resolve([]string{"x", `say "hi"`}, true)
	require.NoError(t, err)
	require.Equal(t, []int{1, 1}, got)
}

func TestProject(t *testing.T) {
	row := []string{"a", "b", "c"}
	require.Equal(t, []string{"c", "a"}, Project(nil, row, []int{2, 0}))
	require.Equal(t, []string{"b", ""}, Project(make([]string, 0, 4), row, []int{1, 7}))
}
