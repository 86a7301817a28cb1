package testutil

import (
	"math/rand"
	"testing"
	"time"

	"covidetl/pkg/contracts/domain"
)

// MortalityColumns are the columns of the mock death-certificate table
var MortalityColumns = []string{"id", "date_of_death", "region", "gender", "diag"}

// MortalityOptions controls MortalityTable generation
type MortalityOptions struct {
	Rows      int
	Seed      int64
	NullRatio float64 // share of nulls in id and region; zero means 0.1
	U071Ratio float64 // share of diag == "U071"; zero means 0.9
}

// MortalityTable builds a reproducible table shaped like the national death
// records: dates rendered as dd:mm:YYYY strings, random five-letter regions,
// gender m/f, and a diag column dominated by "U071".
func MortalityTable(t testing.TB, opts MortalityOptions) *domain.Table {
	t.Helper()
	if opts.Rows <= 0 {
		opts.Rows = 1000
	}
	if opts.NullRatio == 0 {
		opts.NullRatio = 0.1
	}
	if opts.U071Ratio == 0 {
		opts.U071Ratio = 0.9
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	nullRows := func() map[int]bool {
		picked := make(map[int]bool)
		for _, i := range rng.Perm(opts.Rows)[:int(float64(opts.Rows)*opts.NullRatio)] {
			picked[i] = true
		}
		return picked
	}
	idNulls, regionNulls := nullRows(), nullRows()
	u071 := make(map[int]bool)
	for _, i := range rng.Perm(opts.Rows)[:int(float64(opts.Rows)*opts.U071Ratio)] {
		u071[i] = true
	}

	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	cols := make([][]domain.Value, len(MortalityColumns))
	for i := range cols {
		cols[i] = make([]domain.Value, opts.Rows)
	}
	for i := 0; i < opts.Rows; i++ {
		if idNulls[i] {
			cols[0][i] = domain.Null()
		} else {
			cols[0][i] = domain.Number(float64(i + 1))
		}

		day := start.AddDate(0, 0, rng.Intn(1400))
		cols[1][i] = domain.String(day.Format("02:01:2006"))

		if regionNulls[i] {
			cols[2][i] = domain.Null()
		} else {
			cols[2][i] = domain.String(randomLetters(rng, 5))
		}

		if rng.Intn(2) == 0 {
			cols[3][i] = domain.String("m")
		} else {
			cols[3][i] = domain.String("f")
		}

		if u071[i] {
			cols[4][i] = domain.String("U071")
		} else {
			cols[4][i] = domain.String("U07" + string(rune('2'+rng.Intn(7))))
		}
	}

	table, err := domain.NewTable(MortalityColumns, cols)
	if err != nil {
		t.Fatalf("build mortality table: %v", err)
	}
	return table
}

func randomLetters(rng *rand.Rand, n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}
