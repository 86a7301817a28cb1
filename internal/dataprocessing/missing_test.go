package dataprocessing

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "covidetl/internal/errors"
	"covidetl/internal/shared/testutil"
	"covidetl/pkg/contracts/domain"
)

// nums builds cells from ints, floats and strings; nil is null
func nums(values ...interface{}) []domain.Value {
	out := make([]domain.Value, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
			out[i] = domain.Null()
		case int:
			out[i] = domain.Number(float64(x))
		case float64:
			out[i] = domain.Number(x)
		case string:
			out[i] = domain.String(x)
		}
	}
	return out
}

func single(values []domain.Value) *domain.Table {
	return domain.MustTable([]string{"v"}, [][]domain.Value{values})
}

func TestResolveStrategies(t *testing.T) {
	tests := []struct {
		name     string
		input    []domain.Value
		strategy Strategy
		want     []domain.Value
	}{
		{name: "backward fill", input: nums(nil, 1, nil, 3, nil), strategy: BackwardFill, want: nums(1, 1, 3, 3, nil)},
		{name: "forward fill", input: nums(nil, 1, nil, 3, nil), strategy: ForwardFill, want: nums(nil, 1, 1, 3, 3)},
		{name: "drop row", input: nums(nil, 1, nil, 3, nil), strategy: DropRow, want: nums(1, 3)},
		{name: "interpolation keeps boundaries", input: nums(nil, 1, nil, 3, nil), strategy: LinearInterpolation, want: nums(nil, 1, 2, 3, nil)},
		{name: "interpolation over a run", input: nums(1, nil, nil, 4), strategy: LinearInterpolation, want: nums(1, 2, 3, 4)},
		{name: "mode tie takes smallest", input: nums(5, nil, 2, 5, 2, nil, 1), strategy: ModeImpute, want: nums(5, 2, 2, 5, 2, 2, 1)},
		{name: "mode all distinct", input: nums(3, nil, 1), strategy: ModeImpute, want: nums(3, 1, 1)},
		{name: "mode strings", input: nums("b", "a", nil, "b", "a"), strategy: ModeImpute, want: nums("b", "a", "a", "b", "a")},
		{name: "median odd", input: nums(1, nil, 3, 10), strategy: MedianImpute, want: nums(1, 3, 3, 10)},
		{name: "median even", input: nums(1, 2, nil, 3, 4), strategy: MedianImpute, want: nums(1, 2, 2.5, 3, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProcessor(t)
			table := single(tt.input)

			res := p.Resolve(context.Background(), table, "v", 0, tt.strategy)
			require.NoError(t, res.Err)
			assert.Equal(t, StatusApplied, res.Status)
			assert.True(t, single(tt.want).Equal(res.Table), "got %v", res.Table.Records())

			// input untouched
			assert.True(t, single(tt.input).Equal(table))
		})
	}
}

func TestResolveThreshold(t *testing.T) {
	p, _ := newTestProcessor(t)
	table := single(nums(1, nil, 3, nil, 5))

	res := p.Resolve(context.Background(), table, "v", 0.4, DropRow)
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.Same(t, table, res.Table)

	res = p.Resolve(context.Background(), table, "v", 0.39, DropRow)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, 3, res.Table.NumRows())

	empty := single(nil)
	res = p.Resolve(context.Background(), empty, "v", 0, MedianImpute)
	assert.Equal(t, StatusUnchanged, res.Status)
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name     string
		input    []domain.Value
		column   string
		strategy Strategy
		wantIs   error
	}{
		{name: "missing column", input: nums(1, nil), column: "nope", strategy: DropRow, wantIs: apperrors.ErrSchema},
		{name: "median on strings", input: nums("a", nil), column: "v", strategy: MedianImpute, wantIs: apperrors.ErrTransform},
		{name: "interpolation on strings", input: nums("a", nil, "c"), column: "v", strategy: LinearInterpolation, wantIs: apperrors.ErrTransform},
		{name: "median all null", input: nums(nil, nil), column: "v", strategy: MedianImpute, wantIs: apperrors.ErrTransform},
		{name: "mode all null", input: nums(nil, nil), column: "v", strategy: ModeImpute, wantIs: apperrors.ErrTransform},
		{name: "mode mixed kinds", input: nums(1, "a", nil), column: "v", strategy: ModeImpute, wantIs: apperrors.ErrTransform},
		{name: "unknown strategy", input: nums(1, nil), column: "v", strategy: Strategy(42), wantIs: apperrors.ErrTransform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, logs := newTestProcessor(t)
			table := single(tt.input)

			res := p.Resolve(context.Background(), table, tt.column, 0, tt.strategy)
			assert.Equal(t, StatusFailed, res.Status)
			assert.Same(t, table, res.Table)
			assert.True(t, stderrors.Is(res.Err, tt.wantIs))
			assert.True(t, logs.ContainsMessage("transform failed"))
		})
	}
}

func TestResolveDropRowIsIdempotent(t *testing.T) {
	p, _ := newTestProcessor(t)
	table := testutil.MortalityTable(t, testutil.MortalityOptions{Rows: 200, Seed: 5})

	once := p.Resolve(context.Background(), table, "region", 0, DropRow)
	twice := p.Resolve(context.Background(), once.Table, "region", 0, DropRow)

	assert.True(t, once.Table.Equal(twice.Table))
	assert.Equal(t, 0, once.Table.NullCount("region"))
	assert.Equal(t, StatusUnchanged, twice.Status)
}

func TestResolveMedianOnMortalityIDs(t *testing.T) {
	p, _ := newTestProcessor(t)
	table := testutil.MortalityTable(t, testutil.MortalityOptions{Rows: 1000, Seed: 9})
	require.Equal(t, 100, table.NullCount("id"))

	res := p.Resolve(context.Background(), table, "id", 0.05, MedianImpute)
	require.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, 0, res.Table.NullCount("id"))

	before, _ := table.Column("id")
	after, _ := res.Table.Column("id")
	for i := 0; i < before.Len(); i++ {
		if !before.At(i).IsNull() {
			assert.True(t, before.At(i).Equal(after.At(i)))
		}
	}

	// other columns are shared, not copied
	regionBefore, _ := table.Column("region")
	regionAfter, _ := res.Table.Column("region")
	assert.Same(t, regionBefore, regionAfter)
}

func TestResolveBackwardFillLastCellSet(t *testing.T) {
	p, _ := newTestProcessor(t)
	res := p.Resolve(context.Background(), single(nums(nil, nil, 2, nil, 7)), "v", 0, BackwardFill)
	assert.Equal(t, 0, res.Table.NullCount("v"))
}

func TestResolveAll(t *testing.T) {
	p, _ := newTestProcessor(t)
	table := domain.MustTable(
		[]string{"a", "b"},
		[][]domain.Value{nums(1, nil, 3), nums("x", "y", nil)},
	)

	res := p.ResolveAll(context.Background(), table, 0, DropRow)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, 1, res.Table.NumRows())

	res = p.ResolveAll(context.Background(), table, 0, MedianImpute)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 0, res.Table.NullCount("a"))
	assert.Equal(t, 1, res.Table.NullCount("b"))
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
	}{
		{"backward_fill", BackwardFill},
		{"BFILL", BackwardFill},
		{"ffill", ForwardFill},
		{"drop_row", DropRow},
		{" interpolate ", LinearInterpolation},
		{"mode", ModeImpute},
		{"Median", MedianImpute},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseStrategy("mean")
	assert.Error(t, err)

	var s Strategy
	require.NoError(t, s.UnmarshalText([]byte("median")))
	assert.Equal(t, MedianImpute, s)
	text, _ := s.MarshalText()
	assert.Equal(t, "median", string(text))
}
