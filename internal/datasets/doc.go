// Package datasets holds the built-in COVID mortality and population
// sources and loads extra dataset definitions from a YAML catalog.
//
// A catalog file lists datasets in the same shape as the built-ins:
//
//	datasets:
//	  - name: peru
//	    source:
//	      url: https://example.org/fallecidos_covid.csv
//	      separator: ";"
//	    steps:
//	      - type: project
//	        columns: [FECHA_FALLECIMIENTO]
//	      - type: normalize_dates
//	        column: FECHA_FALLECIMIENTO
//	    output:
//	      file_name: peru_covid_mortality
package datasets
