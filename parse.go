package reqflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smokejel/reqflow/executor"
)

// =============================================================================
// Stage Output Parsing
// =============================================================================
//
// Parse failures are wrapped as content errors so the stage executor falls
// back to the next model instead of retrying the one that produced the
// malformed output.

// extractJSONBlock pulls a JSON payload out of model output, preferring a
// fenced ```json block, then any fenced block, then the raw text.
func extractJSONBlock(output string) string {
	output = strings.TrimSpace(output)

	if start := strings.Index(output, "```json"); start != -1 {
		start += 7
		if end := strings.Index(output[start:], "```"); end != -1 {
			return strings.TrimSpace(output[start : start+end])
		}
	}
	if start := strings.Index(output, "```"); start != -1 {
		start += 3
		if end := strings.Index(output[start:], "```"); end != -1 {
			return strings.TrimSpace(output[start : start+end])
		}
	}
	return output
}

// parseExtractOutput parses the extract stage response.
func parseExtractOutput(output string) ([]Requirement, error) {
	var payload struct {
		Requirements []Requirement `json:"requirements"`
	}
	if err := json.Unmarshal([]byte(extractJSONBlock(output)), &payload); err != nil {
		return nil, executor.NewContentError(fmt.Errorf("parse extract output: %w", err))
	}

	for _, req := range payload.Requirements {
		if err := req.Validate(); err != nil {
			return nil, executor.NewContentError(fmt.Errorf("extract output: %w", err))
		}
	}
	return payload.Requirements, nil
}

// parseAnalyzeOutput parses the analyze stage response.
func parseAnalyzeOutput(output string, known []Requirement) (summary string, relevant []string, err error) {
	var payload struct {
		AnalysisSummary      string   `json:"analysis_summary"`
		RelevantRequirements []string `json:"relevant_requirements"`
	}
	if err := json.Unmarshal([]byte(extractJSONBlock(output)), &payload); err != nil {
		return "", nil, executor.NewContentError(fmt.Errorf("parse analyze output: %w", err))
	}
	if payload.AnalysisSummary == "" {
		return "", nil, executor.NewContentError(fmt.Errorf("analyze output: empty analysis summary"))
	}

	knownIDs := make(map[string]bool, len(known))
	for _, req := range known {
		knownIDs[req.ID] = true
	}
	for _, id := range payload.RelevantRequirements {
		if !knownIDs[id] {
			return "", nil, executor.NewContentError(
				fmt.Errorf("analyze output: unknown requirement ID %q", id))
		}
	}
	return payload.AnalysisSummary, payload.RelevantRequirements, nil
}

// parseDecomposeOutput parses the decompose stage response. An empty
// requirement list is valid: the subsystem has nothing allocated to it.
func parseDecomposeOutput(output, subsystem string) ([]DetailedRequirement, error) {
	var payload struct {
		Requirements []DetailedRequirement `json:"requirements"`
	}
	if err := json.Unmarshal([]byte(extractJSONBlock(output)), &payload); err != nil {
		return nil, executor.NewContentError(fmt.Errorf("parse decompose output: %w", err))
	}

	for i := range payload.Requirements {
		if payload.Requirements[i].Subsystem == "" {
			payload.Requirements[i].Subsystem = subsystem
		}
		if err := payload.Requirements[i].Validate(); err != nil {
			return nil, executor.NewContentError(fmt.Errorf("decompose output: %w", err))
		}
	}
	return payload.Requirements, nil
}

// parseValidateOutput parses the validate stage response. The overall
// score is computed by the caller from configured weights, never taken
// from the model.
func parseValidateOutput(output string) (*QualityMetrics, error) {
	var payload struct {
		Metrics QualityMetrics `json:"metrics"`
		Issues  []QualityIssue `json:"issues"`
	}
	if err := json.Unmarshal([]byte(extractJSONBlock(output)), &payload); err != nil {
		return nil, executor.NewContentError(fmt.Errorf("parse validate output: %w", err))
	}

	metrics := payload.Metrics
	metrics.Issues = payload.Issues
	metrics.OverallScore = 0

	for _, dim := range []float64{metrics.Completeness, metrics.Clarity, metrics.Testability, metrics.Traceability} {
		if dim < 0 || dim > 1 {
			return nil, executor.NewContentError(
				fmt.Errorf("validate output: dimension score %g out of range", dim))
		}
	}
	if dc := metrics.DomainCompliance; dc != nil && (*dc < 0 || *dc > 1) {
		return nil, executor.NewContentError(
			fmt.Errorf("validate output: domain compliance %g out of range", *dc))
	}
	for _, issue := range metrics.Issues {
		switch issue.Severity {
		case SeverityCritical, SeverityMajor, SeverityMinor:
		default:
			return nil, executor.NewContentError(
				fmt.Errorf("validate output: unknown issue severity %q", issue.Severity))
		}
	}
	return &metrics, nil
}
