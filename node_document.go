package reqflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
)

// DocumentNode renders the final subsystem requirements document and saves
// it as a run artifact. Rendering is deterministic; no model is involved.
//
// Updates: state.OutputDocumentPath
func DocumentNode(ctx flowgraph.Context, state State) (State, error) {
	doc := RenderDocument(state)

	if mgr := ArtifactsFromContext(ctx); mgr != nil {
		path, err := mgr.SaveText(state.RunID, "requirements.md", doc)
		if err != nil {
			return state, fmt.Errorf("save requirements document: %w", err)
		}
		state.OutputDocumentPath = path
	}

	return state, nil
}

// RenderDocument produces the subsystem requirements document in markdown.
func RenderDocument(state State) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Subsystem Requirements\n\n", state.Subsystem)
	fmt.Fprintf(&b, "- Run: `%s`\n", state.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", time.Now().Format(time.RFC3339))
	if state.SourceDocumentPath != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", state.SourceDocumentPath)
	}
	fmt.Fprintf(&b, "- Iterations: %d\n", state.IterationCount)
	if state.QualityMetrics != nil {
		fmt.Fprintf(&b, "- Quality score: %.2f\n", state.QualityMetrics.OverallScore)
	}
	b.WriteString("\n")

	if state.AnalysisSummary != "" {
		b.WriteString("## Subsystem Analysis\n\n")
		b.WriteString(strings.TrimSpace(state.AnalysisSummary))
		b.WriteString("\n\n")
	}

	b.WriteString("## Requirements\n\n")
	if len(state.DecomposedRequirements) == 0 {
		b.WriteString("No requirements are allocated to this subsystem from the source document.\n\n")
	}
	for _, req := range state.DecomposedRequirements {
		fmt.Fprintf(&b, "### %s\n\n", req.ID)
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(req.Text))
		fmt.Fprintf(&b, "- Type: %s\n", req.Type)
		fmt.Fprintf(&b, "- Traces to: %s\n", req.ParentID)
		if req.Rationale != "" {
			fmt.Fprintf(&b, "- Rationale: %s\n", req.Rationale)
		}
		if len(req.AcceptanceCriteria) > 0 {
			b.WriteString("- Acceptance criteria:\n")
			for _, ac := range req.AcceptanceCriteria {
				fmt.Fprintf(&b, "  - %s\n", ac)
			}
		}
		b.WriteString("\n")
	}

	writeTraceabilityAppendix(&b, state)

	return b.String()
}

// writeTraceabilityAppendix renders the parent-to-child trace table.
func writeTraceabilityAppendix(b *strings.Builder, state State) {
	trace := state.Traceability()
	if len(trace.Forward) == 0 && !trace.HasOrphans() {
		return
	}

	b.WriteString("## Appendix: Traceability\n\n")
	b.WriteString("| System Requirement | Derived Requirements |\n")
	b.WriteString("|---|---|\n")

	parents := make([]string, 0, len(trace.Forward))
	for id := range trace.Forward {
		parents = append(parents, id)
	}
	sort.Strings(parents)

	for _, parent := range parents {
		children := trace.Forward[parent]
		if len(children) == 0 {
			fmt.Fprintf(b, "| %s | (uncovered) |\n", parent)
			continue
		}
		fmt.Fprintf(b, "| %s | %s |\n", parent, strings.Join(children, ", "))
	}

	if trace.HasOrphans() {
		b.WriteString("\nOrphaned requirements (missing or dangling parent): ")
		b.WriteString(strings.Join(trace.Orphans, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
