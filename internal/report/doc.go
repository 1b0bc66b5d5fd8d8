// Package report renders run summaries and analysis results as plain text
// files, one titled section per concern.
package report
