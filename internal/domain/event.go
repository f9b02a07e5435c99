package domain

import "time"

// EventPackagePublished is the event type emitted after a successful push.
const EventPackagePublished = "package.published"

// PackagePublished announces a new package version to downstream consumers.
type PackagePublished struct {
	Package      string    `json:"package"`
	TopHash      string    `json:"top_hash"`
	QualityScore float64   `json:"quality_score"`
	Passed       bool      `json:"passed"`
	Timestamp    time.Time `json:"timestamp"`
}
