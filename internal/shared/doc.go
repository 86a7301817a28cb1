// Package shared holds helpers used by more than one pipeline package.
//
// The testutil subpackage provides a capturing slog handler for asserting
// log output and generators for the mock mortality tables used across the
// extraction, dataprocessing and exporter tests:
//
//	logger, logs := testutil.NewTestLogger(t)
//	table := testutil.MortalityTable(t, testutil.MortalityOptions{Rows: 1000, Seed: 7})
//
// Nothing in this tree is imported by production code.
package shared
