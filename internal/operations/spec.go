package operations

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"covidetl/internal/dataprocessing"
	apperrors "covidetl/internal/errors"
)

// DatasetSpec describes how one dataset is retrieved, cleaned and stored
type DatasetSpec struct {
	Name        string     `yaml:"name" json:"name" validate:"required,excludesall=/\\ "`
	Description string     `yaml:"description" json:"description,omitempty"`
	Source      SourceSpec `yaml:"source" json:"source"`
	Steps       []StepSpec `yaml:"steps" json:"steps" validate:"dive"`
	Output      OutputSpec `yaml:"output" json:"output"`
}

// SourceSpec locates and decodes the raw payload
type SourceSpec struct {
	URL            string        `yaml:"url" json:"url" validate:"required,url"`
	Format         string        `yaml:"format" json:"format,omitempty" validate:"omitempty,oneof=csv xlsx"`
	Archive        bool          `yaml:"archive" json:"archive,omitempty"`
	Separator      string        `yaml:"separator" json:"separator,omitempty"`
	SkipRows       int           `yaml:"skip_rows" json:"skip_rows,omitempty" validate:"min=0"`
	Sheet          string        `yaml:"sheet" json:"sheet,omitempty"`
	NullValues     []string      `yaml:"null_values" json:"null_values,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout,omitempty" validate:"min=0"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout,omitempty" validate:"min=0"`
}

// StepSpec is one transform. Which fields apply depends on Type.
type StepSpec struct {
	Type      string         `yaml:"type" json:"type" validate:"required,oneof=project keep_rows resolve normalize_dates normalize_column_names"`
	Columns   []string       `yaml:"columns" json:"columns,omitempty"`
	DateRange *DateRangeSpec `yaml:"date_range" json:"date_range,omitempty"`
	Column    string         `yaml:"column" json:"column,omitempty"`
	// MonthFirst reads ambiguous cells such as 03/04/2020 as M/D/Y in normalize_dates
	MonthFirst bool     `yaml:"month_first" json:"month_first,omitempty"`
	Values     []string `yaml:"values" json:"values,omitempty"`
	Threshold  float64  `yaml:"threshold" json:"threshold,omitempty" validate:"min=0,max=1"`
	Strategy   string   `yaml:"strategy" json:"strategy,omitempty"`
}

// DateRangeSpec adds every day from From to To inclusive to a project whitelist
type DateRangeSpec struct {
	From string `yaml:"from" json:"from" validate:"required"`
	To   string `yaml:"to" json:"to" validate:"required"`
}

// OutputSpec names where the cleaned table goes
type OutputSpec struct {
	FileName  string `yaml:"file_name" json:"file_name" validate:"required"`
	Dir       string `yaml:"dir" json:"dir,omitempty"`
	Overwrite bool   `yaml:"overwrite" json:"overwrite,omitempty"`
	Table     string `yaml:"table" json:"table,omitempty"`
}

// Target names what a step acts on, for reports and logs
func (s StepSpec) Target() string {
	switch s.Type {
	case StepProject:
		n := len(s.Columns)
		if s.DateRange != nil {
			return fmt.Sprintf("%d columns + %s..%s", n, s.DateRange.From, s.DateRange.To)
		}
		return fmt.Sprintf("%d columns", n)
	case StepResolve:
		if s.Column == "" {
			return "*"
		}
		return s.Column
	default:
		return s.Column
	}
}

// ResolveStrategy returns the parsed strategy, drop_row when unset
func (s StepSpec) ResolveStrategy() (dataprocessing.Strategy, error) {
	if s.Strategy == "" {
		return dataprocessing.DropRow, nil
	}
	return dataprocessing.ParseStrategy(s.Strategy)
}

// SeparatorRune returns the field separator, comma when unset
func (s SourceSpec) SeparatorRune() rune {
	if s.Separator == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(s.Separator)
	return r
}

var validate = validator.New()

// Validate checks the struct tags and the per-type step requirements
func (d DatasetSpec) Validate() error {
	var problems []string

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !stderrors.As(err, &verrs) {
			return apperrors.New(apperrors.TypeConfig, "dataset", "invalid dataset "+d.Name, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	}

	if utf8.RuneCountInString(d.Source.Separator) > 1 {
		problems = append(problems, "source.separator must be a single character")
	}

	for i, step := range d.Steps {
		if err := step.check(); err != nil {
			problems = append(problems, fmt.Sprintf("steps[%d] %s: %v", i, step.Type, err))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return apperrors.New(apperrors.TypeConfig, "dataset",
		fmt.Sprintf("invalid dataset %q: %s", d.Name, strings.Join(problems, "; ")), nil).
		WithDetail("dataset", d.Name)
}

func (s StepSpec) check() error {
	switch s.Type {
	case StepProject:
		if len(s.Columns) == 0 && s.DateRange == nil {
			return fmt.Errorf("needs columns or date_range")
		}
		if s.DateRange != nil {
			if _, err := dataprocessing.ParseDateRange(s.DateRange.From, s.DateRange.To); err != nil {
				return err
			}
		}
	case StepKeepRows:
		if s.Column == "" || len(s.Values) == 0 {
			return fmt.Errorf("needs column and values")
		}
	case StepResolve:
		if _, err := s.ResolveStrategy(); err != nil {
			return err
		}
	case StepNormalizeDates:
		if s.Column == "" {
			return fmt.Errorf("needs column")
		}
	}
	return nil
}
