// Package shared holds helpers used by more than one pipeline package.
//
// The testutil subpackage provides a log recorder for asserting on slog
// output and a builder for small logistics CSV fixtures:
//
//	logger, logs := testutil.NewTestLogger(t)
//	raw := testutil.NewFixture().
//		Row(testutil.Cells{"timestamp": "2021-01-01 10:00", "fuel_consumption_rate": "-2"}).
//		Table(t)
package shared
