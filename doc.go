// Package reqflow decomposes system-level requirements documents into
// subsystem-level requirements through an LLM-driven pipeline with quality
// gating and iterative refinement.
//
// The pipeline is a fixed directed graph of stages:
//
//	extract → analyze → decompose → validate → document
//
// with two diversions: analyze can pause for human pre-review, and validate
// routes backward to decompose (the revise loop) or sideways to human review
// when automated refinement cannot converge. The graph is built on flowgraph;
// routing predicates are pure functions over State.
//
// The package is organized into subpackages by domain:
//
//   - executor: retry, model fallback, and error classification around each
//     stage's external call
//   - checkpoint: durable run snapshots keyed by run ID (resume after crash)
//   - budget: per-run cost tracking with a hard ceiling
//   - notify: fire-and-forget lifecycle events (log, webhook, multi)
//   - review: the human decision channel (blocking CLI or suspend/resume)
//   - document: source document reading and type detection
//   - prompt: prompt template loading
//   - artifact: per-run output persistence
//   - config: YAML pipeline configuration
//
// # Quick Start
//
//	import (
//	    "github.com/smokejel/reqflow"
//	    "github.com/smokejel/reqflow/config"
//	)
//
//	cfg := config.Default()
//	services, _ := reqflow.NewServices(cfg)
//	ctx := services.InjectAll(context.Background())
//
//	state := reqflow.NewState("Power Management").
//	    WithSourcePath("requirements.txt")
//
//	machine := reqflow.NewMachine()
//	result, err := machine.Run(ctx, state)
//
// See individual package documentation for detailed usage.
package reqflow
