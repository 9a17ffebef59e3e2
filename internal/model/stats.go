package model

import "fmt"

// Stats are the running session statistics.
type Stats struct {
	TotalSamples       int `json:"totalSamples"`
	CorrectPredictions int `json:"correctPredictions"`
}

// Record registers one training event.
// correct marks the confirmation path e.g. the prediction was right.
func (s Stats) Record(correct bool) Stats {
	s.TotalSamples++
	if correct {
		s.CorrectPredictions++
	}
	return s
}

// Accuracy returns the share of confirmed predictions and false if there are no samples yet.
func (s Stats) Accuracy() (float64, bool) {
	if s.TotalSamples == 0 {
		return 0, false
	}
	return float64(s.CorrectPredictions) / float64(s.TotalSamples), true
}

// Validate checks the stats invariants.
func (s Stats) Validate() error {
	if s.TotalSamples < 0 || s.CorrectPredictions < 0 {
		return fmt.Errorf("negative stats %+v", s)
	}
	if s.CorrectPredictions > s.TotalSamples {
		return fmt.Errorf("correct predictions exceed samples %+v", s)
	}
	return nil
}
