// Package quality scores a cleaned dataset on completeness, uniqueness,
// validity, cross-field consistency and IQR outlier rate, and blends the
// five into a weighted composite. Scoring is read-only: outliers are
// reported, never removed.
package quality
