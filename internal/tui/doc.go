// Package tui is the bubbletea front end. It turns key presses into
// selection changes on the orchestrator and redraws plot panes from the
// events the orchestrator publishes.
//
// Every plot pane registers a surface under its key ("merged" or
// "facet/<i>") with the pane's inner size on each layout pass, and reads
// the surface's binding back when a SurfaceUpdatedEvent or
// PlotRenderedEvent names that key.
package tui
