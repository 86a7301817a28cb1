package datasets

import (
	"time"

	"covidetl/internal/operations"
)

// sourceTimeout is the connect and read timeout used by every built-in source
const sourceTimeout = 200 * time.Second

const (
	chileURL    = "https://datos.gob.cl/dataset/8982a05a-91f7-422d-97bc-3eee08fde784/resource/8e5539b7-10b2-409b-ae5a-36dae4faf817/download/defunciones_covid19_2020_2024.csv"
	usaURL      = "https://data.cdc.gov/api/views/exs3-hbne/rows.csv?fourfour=exs3-hbne&cacheBust=1729520760&date=20241106&accessType=DOWNLOAD"
	colombiaURL = "https://www.datos.gov.co/api/views/jp5m-e7yr/rows.csv?fourfour=jp5m-e7yr&cacheBust=1705599009&date=20241106&accessType=DOWNLOAD"
	mexicoURL   = "https://datos.covid-19.conacyt.mx/Downloads/Files/Casos_Diarios_Estado_Nacional_Defunciones_20230625.csv"
	worldURL    = "https://api.worldbank.org/v2/en/indicator/SP.POP.TOTL?downloadformat=csv"
)

// Builtin returns the five datasets shipped with the tool, in run order
func Builtin() []operations.DatasetSpec {
	return []operations.DatasetSpec{
		Chile(),
		USA(),
		Colombia(),
		Mexico(),
		WorldPopulation(),
	}
}

func source(url string) operations.SourceSpec {
	return operations.SourceSpec{
		URL:            url,
		ConnectTimeout: sourceTimeout,
		ReadTimeout:    sourceTimeout,
	}
}

// Chile is the national death registry, one row per death
func Chile() operations.DatasetSpec {
	src := source(chileURL)
	src.Separator = ";"
	return operations.DatasetSpec{
		Name:        "chile",
		Description: "Chile COVID-19 deaths by date and primary diagnosis",
		Source:      src,
		Steps: []operations.StepSpec{
			{Type: operations.StepProject, Columns: []string{"FECHA_DEF", "DIAG1"}},
			{Type: operations.StepNormalizeDates, Column: "FECHA_DEF"},
			{Type: operations.StepResolve, Strategy: "drop_row"},
		},
		Output: operations.OutputSpec{FileName: "chile_covid_mortality"},
	}
}

// USA is the CDC provisional death counts, national rows only
func USA() operations.DatasetSpec {
	return operations.DatasetSpec{
		Name:        "usa",
		Description: "United States COVID-19 death counts and crude rates by period",
		Source:      source(usaURL),
		Steps: []operations.StepSpec{
			{Type: operations.StepKeepRows, Column: "jurisdiction_residence", Values: []string{"United States"}},
			{Type: operations.StepProject, Columns: []string{
				"data_period_start", "data_period_end", "group", "subgroup1", "covid_deaths", "crude_rate",
			}},
			{Type: operations.StepNormalizeDates, Column: "data_period_start", MonthFirst: true},
			{Type: operations.StepNormalizeDates, Column: "data_period_end", MonthFirst: true},
			{Type: operations.StepResolve, Strategy: "drop_row"},
		},
		Output: operations.OutputSpec{FileName: "usa_covid_mortality"},
	}
}

// Colombia is the national case registry reduced to deaths
func Colombia() operations.DatasetSpec {
	return operations.DatasetSpec{
		Name:        "colombia",
		Description: "Colombia COVID-19 case registry, date of death and recovery status",
		Source:      source(colombiaURL),
		Steps: []operations.StepSpec{
			{Type: operations.StepProject, Columns: []string{"Fecha de muerte", "Recuperado"}},
			{Type: operations.StepNormalizeDates, Column: "Fecha de muerte"},
			{Type: operations.StepResolve, Strategy: "median"},
		},
		Output: operations.OutputSpec{FileName: "colombia_covid_mortality"},
	}
}

// Mexico is the wide daily deaths table, one column per day
func Mexico() operations.DatasetSpec {
	return operations.DatasetSpec{
		Name:        "mexico",
		Description: "Mexico daily COVID-19 deaths, national total",
		Source:      source(mexicoURL),
		Steps: []operations.StepSpec{
			{Type: operations.StepNormalizeColumnNames},
			{
				Type:      operations.StepProject,
				Columns:   []string{"nombre"},
				DateRange: &operations.DateRangeSpec{From: "17-03-2020", To: "23-06-2023"},
			},
			{Type: operations.StepKeepRows, Column: "nombre", Values: []string{"Nacional"}},
		},
		Output: operations.OutputSpec{FileName: "mexico_covid_mortality"},
	}
}

// WorldPopulation is the World Bank total population indicator, shipped as
// a zip holding one data CSV behind four preamble lines
func WorldPopulation() operations.DatasetSpec {
	src := source(worldURL)
	src.Archive = true
	src.SkipRows = 3
	return operations.DatasetSpec{
		Name:        "world_population",
		Description: "Total population 2020-2023 for the countries above",
		Source:      src,
		Steps: []operations.StepSpec{
			{Type: operations.StepProject, Columns: []string{"Country Name", "2020", "2021", "2022", "2023"}},
			{Type: operations.StepKeepRows, Column: "Country Name", Values: []string{"Chile", "United States", "Colombia", "Mexico"}},
		},
		Output: operations.OutputSpec{FileName: "world_population_total"},
	}
}
