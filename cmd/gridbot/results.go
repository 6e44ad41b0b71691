package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gridbot/internal/config"
	"gridbot/internal/performance"
)

// savedResult mirrors the shape original_source/utils/performance_results_saver.py
// appends to --save_performance_results: one JSON object per run holding
// the config used, the computed summary, and the trade log.
type savedResult struct {
	Config  *config.Config     `json:"config"`
	Summary performance.Summary `json:"performance_summary"`
}

// appendPerformanceResults appends summary (alongside the run's config) to
// the JSON array at path, creating it if absent, matching the source's
// save-or-append behavior (a malformed existing file is replaced, not
// merged into, same as the source's fallback to an empty list).
func appendPerformanceResults(path string, cfg *config.Config, summary performance.Summary) error {
	var all []savedResult
	if data, err := os.ReadFile(path); err == nil {
		if jsonErr := json.Unmarshal(data, &all); jsonErr != nil {
			all = nil
		}
	}

	all = append(all, savedResult{Config: cfg, Summary: summary})

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("results: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("results: write %s: %w", path, err)
	}
	return nil
}
