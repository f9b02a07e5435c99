package domain

import "time"

// RunResult is the outcome of one pipeline run. A failed run carries its
// step errors and never a top hash.
type RunResult struct {
	RunID         string    `json:"run_id"`
	Success       bool      `json:"success"`
	DataFile      string    `json:"data_file,omitempty"`
	ReportFile    string    `json:"report_file,omitempty"`
	QualityReport *Report   `json:"quality_report,omitempty"`
	Passed        bool      `json:"passed"`
	PackageName   string    `json:"package_name,omitempty"`
	TopHash       string    `json:"top_hash,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Errors        []string  `json:"errors"`
}

// RunRecord is the persisted digest of a RunResult.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	PackageName  string    `json:"package_name"`
	TopHash      string    `json:"top_hash"`
	QualityScore *float64  `json:"quality_score"`
	Success      bool      `json:"success"`
	DataFile     string    `json:"data_file"`
	Errors       []string  `json:"errors"`
	Timestamp    time.Time `json:"timestamp"`
}

// Record digests r for history storage.
func (r RunResult) Record() RunRecord {
	rec := RunRecord{
		RunID:       r.RunID,
		PackageName: r.PackageName,
		TopHash:     r.TopHash,
		Success:     r.Success,
		DataFile:    r.DataFile,
		Errors:      append([]string{}, r.Errors...),
		Timestamp:   r.Timestamp,
	}
	if r.QualityReport != nil {
		score := r.QualityReport.QualityScore
		rec.QualityScore = &score
	}
	return rec
}
