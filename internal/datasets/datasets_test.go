package datasets

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "covidetl/internal/errors"
	"covidetl/internal/operations"
)

func TestBuiltinDatasetsValidate(t *testing.T) {
	specs := Builtin()
	require.Len(t, specs, 5)

	names := make([]string, 0, len(specs))
	files := make(map[string]bool)
	for _, spec := range specs {
		t.Run(spec.Name, func(t *testing.T) {
			require.NoError(t, spec.Validate())
			assert.Equal(t, 200*time.Second, spec.Source.ConnectTimeout)
			assert.Equal(t, 200*time.Second, spec.Source.ReadTimeout)
		})
		names = append(names, spec.Name)
		assert.False(t, files[spec.Output.FileName], "output %s reused", spec.Output.FileName)
		files[spec.Output.FileName] = true
	}
	assert.Equal(t, []string{"chile", "usa", "colombia", "mexico", "world_population"}, names)
}

func TestBuiltinSources(t *testing.T) {
	assert.Equal(t, ';', Chile().Source.SeparatorRune())

	world := WorldPopulation()
	assert.True(t, world.Source.Archive)
	assert.Equal(t, 3, world.Source.SkipRows)
	assert.Equal(t, "world_population_total", world.Output.FileName)

	usa := USA()
	assert.True(t, usa.Steps[2].MonthFirst)
	assert.True(t, usa.Steps[3].MonthFirst)

	mexico := Mexico()
	require.NotNil(t, mexico.Steps[1].DateRange)
	assert.Equal(t, "23-06-2023", mexico.Steps[1].DateRange.To)
}

func TestBuiltinRegistry(t *testing.T) {
	registry := operations.NewRegistry()
	require.NoError(t, Register(registry, Builtin()))
	assert.Equal(t, 5, registry.Count())

	err := Register(registry, []operations.DatasetSpec{Chile()})
	assert.True(t, stderrors.Is(err, operations.ErrDatasetExists))
}

const catalogYAML = `
datasets:
  - name: peru
    description: Peru deaths
    source:
      url: https://datos.example.test/fallecidos_covid.csv
      separator: ";"
      read_timeout: 90s
    steps:
      - type: project
        columns: [FECHA_FALLECIMIENTO, DEPARTAMENTO]
      - type: normalize_dates
        column: FECHA_FALLECIMIENTO
      - type: resolve
        strategy: ffill
        threshold: 0.1
    output:
      file_name: peru_covid_mortality
      table: peru_covid_mortality
  - name: argentina
    source:
      url: https://datos.example.test/argentina.xlsx
      format: xlsx
      sheet: Defunciones
    output:
      file_name: argentina_covid_mortality
`

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0644))

	specs, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	peru := specs[0]
	assert.Equal(t, "peru", peru.Name)
	assert.Equal(t, 90*time.Second, peru.Source.ReadTimeout)
	assert.Equal(t, ';', peru.Source.SeparatorRune())
	require.Len(t, peru.Steps, 3)
	assert.Equal(t, 0.1, peru.Steps[2].Threshold)
	assert.Equal(t, "peru_covid_mortality", peru.Output.Table)

	assert.Equal(t, operations.FormatXLSX, specs[1].Source.Format)
	assert.Empty(t, specs[1].Steps)
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, stderrors.Is(err, apperrors.ErrConfig))

	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", "datasets: [\n"},
		{"unknown key", "datasets:\n  - name: x\n    colour: red\n"},
		{"invalid dataset", "datasets:\n  - name: x\n    source: {url: nope}\n    output: {file_name: x}\n"},
		{"duplicate", "datasets:\n" +
			"  - {name: x, source: {url: 'https://a.test/x.csv'}, output: {file_name: x}}\n" +
			"  - {name: x, source: {url: 'https://a.test/y.csv'}, output: {file_name: y}}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, apperrors.ErrConfig))
		})
	}
}
