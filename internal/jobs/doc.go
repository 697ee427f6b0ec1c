// Package jobs persists quality-control jobs in SQLite and owns every status
// transition on both the analysis and remediation tracks.
package jobs
