// Package events is the pub/sub bus between the plot pipeline and the UI.
//
// The orchestrator publishes generation lifecycle, result and surface events;
// the TUI subscribes and turns them into redraws. Delivery is best-effort: a
// slow subscriber misses events instead of stalling the pipeline, and the UI
// always re-reads surface content when it redraws.
package events
