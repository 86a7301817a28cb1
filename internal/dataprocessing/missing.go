package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/interp"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// Strategy selects how missing values in a column are resolved
type Strategy int

const (
	BackwardFill Strategy = iota
	ForwardFill
	DropRow
	LinearInterpolation
	ModeImpute
	MedianImpute
)

var strategyNames = map[Strategy]string{
	BackwardFill:        "backward_fill",
	ForwardFill:         "forward_fill",
	DropRow:             "drop_row",
	LinearInterpolation: "linear_interpolation",
	ModeImpute:          "mode",
	MedianImpute:        "median",
}

var strategyAliases = map[string]Strategy{
	"bfill":         BackwardFill,
	"ffill":         ForwardFill,
	"drop":          DropRow,
	"interpolation": LinearInterpolation,
	"interpolate":   LinearInterpolation,
}

// String returns the canonical strategy name
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts canonical names and the short aliases bfill, ffill,
// drop and interpolate, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for s, n := range strategyNames {
		if n == key {
			return s, nil
		}
	}
	if s, ok := strategyAliases[key]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown missing-value strategy %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MissingRatio returns the share of null cells in a column, or 0 for an
// empty table
func MissingRatio(table *domain.Table, column string) (float64, bool) {
	col, ok := table.Column(column)
	if !ok {
		return 0, false
	}
	if table.NumRows() == 0 {
		return 0, true
	}
	return float64(col.NullCount()) / float64(table.NumRows()), true
}

// Resolve applies strategy to column when its missing ratio exceeds threshold.
// Failures are logged and the input table is returned.
func (p *Processor) Resolve(ctx context.Context, table *domain.Table, column string, threshold float64, strategy Strategy) Result {
	const op = "resolve"

	col, ok := table.Column(column)
	if !ok {
		return p.fail(ctx, op, table, apperrors.NewSchemaError(op, []string{column}))
	}
	ratio, _ := MissingRatio(table, column)
	if table.NumRows() == 0 || ratio <= threshold {
		p.logger.DebugContext(ctx, "missing ratio within threshold",
			slog.String("column", column),
			slog.Float64("missing_ratio", ratio),
			slog.Float64("threshold", threshold))
		return unchanged(table)
	}

	var (
		out *domain.Table
		err error
	)
	switch strategy {
	case BackwardFill:
		out, err = table.WithColumn(column, backwardFill(col.Values()))
	case ForwardFill:
		out, err = table.WithColumn(column, forwardFill(col.Values()))
	case DropRow:
		out = table.FilterRows(func(row int) bool { return !col.At(row).IsNull() })
	case LinearInterpolation:
		var values []domain.Value
		if values, err = interpolate(col); err == nil {
			out, err = table.WithColumn(column, values)
		}
	case ModeImpute:
		var fill domain.Value
		if fill, err = mode(col); err == nil {
			out, err = table.WithColumn(column, replaceNulls(col.Values(), fill))
		}
	case MedianImpute:
		var fill domain.Value
		if fill, err = median(col); err == nil {
			out, err = table.WithColumn(column, replaceNulls(col.Values(), fill))
		}
	default:
		err = fmt.Errorf("unknown strategy %s", strategy)
	}
	if err != nil {
		return p.fail(ctx, op, table, apperrors.NewTransformError(op, fmt.Sprintf("%s on column %q", strategy, column), err))
	}

	p.logger.InfoContext(ctx, "missing values resolved",
		slog.String("column", column),
		slog.String("strategy", strategy.String()),
		slog.Float64("missing_ratio", ratio),
		slog.Int("nulls_before", col.NullCount()),
		slog.Int("nulls_after", out.NullCount(column)),
		slog.Int("rows_after", out.NumRows()))
	return applied(out)
}

// ResolveAll applies Resolve to every column in order, feeding each result
// into the next. The result is Failed if any column failed.
func (p *Processor) ResolveAll(ctx context.Context, table *domain.Table, threshold float64, strategy Strategy) Result {
	current := table
	status := StatusUnchanged
	var failures []error
	for _, name := range table.Columns() {
		res := p.Resolve(ctx, current, name, threshold, strategy)
		current = res.Table
		switch res.Status {
		case StatusApplied:
			status = StatusApplied
		case StatusFailed:
			failures = append(failures, res.Err)
		}
	}
	if len(failures) > 0 {
		return Result{
			Table:  current,
			Status: StatusFailed,
			Err:    apperrors.NewTransformError("resolve_all", fmt.Sprintf("%d column(s) failed", len(failures)), failures[0]),
		}
	}
	return Result{Table: current, Status: status}
}

func backwardFill(values []domain.Value) []domain.Value {
	next := domain.Null()
	for i := len(values) - 1; i >= 0; i-- {
		if values[i].IsNull() {
			values[i] = next
			continue
		}
		next = values[i]
	}
	return values
}

func forwardFill(values []domain.Value) []domain.Value {
	last := domain.Null()
	for i, v := range values {
		if v.IsNull() {
			values[i] = last
			continue
		}
		last = v
	}
	return values
}

func replaceNulls(values []domain.Value, fill domain.Value) []domain.Value {
	for i, v := range values {
		if v.IsNull() {
			values[i] = fill
		}
	}
	return values
}

// numbers returns the non-null cells of a numeric column with their row positions
func numbers(col *domain.Column) (xs, ys []float64, err error) {
	kind, ok := col.Kind()
	if !ok || (kind != domain.KindNumber && kind != domain.KindNull) {
		return nil, nil, fmt.Errorf("column %q is not numeric", col.Name())
	}
	for i := 0; i < col.Len(); i++ {
		if f, ok := col.At(i).Float(); ok {
			xs = append(xs, float64(i))
			ys = append(ys, f)
		}
	}
	return xs, ys, nil
}

// interpolate fills interior null runs along the row index. Leading and
// trailing nulls stay null.
func interpolate(col *domain.Column) ([]domain.Value, error) {
	xs, ys, err := numbers(col)
	if err != nil {
		return nil, err
	}
	values := col.Values()
	if len(xs) < 2 {
		return values, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	first, last := int(xs[0]), int(xs[len(xs)-1])
	for i := first + 1; i < last; i++ {
		if values[i].IsNull() {
			values[i] = domain.Number(pl.Predict(float64(i)))
		}
	}
	return values, nil
}

// mode returns the most frequent non-null cell, the smallest on ties
func mode(col *domain.Column) (domain.Value, error) {
	kind, ok := col.Kind()
	if !ok {
		return domain.Null(), fmt.Errorf("column %q mixes value kinds", col.Name())
	}
	if kind == domain.KindNull {
		return domain.Null(), fmt.Errorf("column %q has no values", col.Name())
	}

	if kind == domain.KindNumber {
		_, ys, _ := numbers(col)
		modes, err := stats.Mode(ys)
		if err != nil {
			return domain.Null(), err
		}
		// Mode returns nothing when every value is equally frequent
		if len(modes) == 0 {
			modes = ys
		}
		m, err := stats.Min(modes)
		if err != nil {
			return domain.Null(), err
		}
		return domain.Number(m), nil
	}

	counts := make(map[string]int)
	var best domain.Value
	bestCount := 0
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsNull() {
			continue
		}
		key := v.String()
		counts[key]++
		c := counts[key]
		if c > bestCount || (c == bestCount && v.Less(best)) {
			best, bestCount = v, c
		}
	}
	return best, nil
}

// median returns the median of a numeric column
func median(col *domain.Column) (domain.Value, error) {
	_, ys, err := numbers(col)
	if err != nil {
		return domain.Null(), err
	}
	m, err := stats.Median(ys)
	if err != nil {
		return domain.Null(), fmt.Errorf("column %q has no values: %w", col.Name(), err)
	}
	return domain.Number(m), nil
}
