package tui

import (
	"fmt"

	"github.com/billie-coop/gridscope/internal/events"
	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/surface"
	"github.com/billie-coop/gridscope/internal/tui/components/status"
	tea "github.com/charmbracelet/bubbletea/v2"
)

// listenForEvents listens for events from the event broker
func (m *Model) listenForEvents() tea.Cmd {
	sub := m.eventSub
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil
		}
		return event
	}
}

// handleEvent processes events from the event broker
func (m *Model) handleEvent(event events.Event) tea.Cmd {
	var cmds []tea.Cmd

	switch event.Type {
	case events.GenerationStartedEvent:
		if p, ok := event.Payload.(events.GenerationPayload); ok {
			m.generation = p
			m.sidebar.SetState(p.State)
			m.statusBar.SetLeftContent(describe(p))
			m.clearError()
			if m.showStats {
				cmds = append(cmds, m.loadStatistics())
			}
			if !p.Facet {
				m.setMergedPane()
				if pane := m.pane(surface.MergedKey); pane != nil {
					cmds = append(cmds, pane.SetPending())
				}
			}
		}

	case events.GenerationStateEvent:
		if p, ok := event.Payload.(events.GenerationPayload); ok {
			m.sidebar.SetState(p.State)
			if p.ID != 0 && p.ID == m.generation.ID {
				m.generation.State = p.State
				m.statusBar.SetLeftContent(describe(m.generation))
			}
			switch p.State {
			case "idle", "done", "failed", "timed_out":
				m.settlePanes()
			}
		}

	case events.PlotRenderedEvent:
		if p, ok := event.Payload.(events.PlotRenderedPayload); ok {
			m.refresh(p.SurfaceKey)
			m.clearError()
		}

	case events.PlotFailedEvent:
		if p, ok := event.Payload.(events.PlotFailedPayload); ok && p.Err != nil {
			m.settlePanes()
			m.errorPanel.Set(p.Err)
			m.layout()
			cmds = append(cmds, m.statusBar.ShowError(p.Kind.String()+" error"))
		}

	case events.FacetsPreparedEvent:
		if p, ok := event.Payload.(events.FacetsPreparedPayload); ok {
			titles := make([]string, len(p.Facets))
			for i, f := range p.Facets {
				titles[i] = f.DisplayName()
			}
			m.setFacetPanes(p.SurfaceKeys, titles)
			for _, pane := range m.panes {
				cmds = append(cmds, pane.SetPending())
			}
		}

	case events.FacetsCompletedEvent:
		if p, ok := event.Payload.(events.FacetsCompletedPayload); ok {
			for i, r := range p.Results {
				pane := m.pane(surface.FacetKey(i))
				if pane == nil {
					continue
				}
				if r.OK() {
					m.refresh(pane.Key())
				} else {
					pane.SetError(r.Err)
				}
			}
			if plot.Classify(p.Err) == plot.KindPartial {
				cmds = append(cmds, m.statusBar.ShowWarning(p.Err.Error()))
			}
		}

	case events.SurfaceUpdatedEvent:
		if p, ok := event.Payload.(events.SurfacePayload); ok {
			m.refresh(p.Key)
		}

	case events.StatusMessageEvent:
		if p, ok := event.Payload.(events.StatusMessagePayload); ok {
			cmds = append(cmds, m.statusBar.SetMessage(p.Message, status.ParseType(p.Type)))
		}
	}

	return tea.Batch(cmds...)
}

// refresh redraws the pane showing the surface at key.
func (m *Model) refresh(key string) {
	pane := m.pane(key)
	if pane == nil || m.surfaces == nil {
		return
	}
	if s, ok := m.surfaces.Get(key); ok {
		pane.Refresh(s)
	}
}

// settlePanes stops every spinner, showing whatever the surfaces hold.
func (m *Model) settlePanes() {
	if m.surfaces == nil {
		return
	}
	for _, pane := range m.panes {
		if !pane.Pending() {
			continue
		}
		if s, ok := m.surfaces.Get(pane.Key()); ok {
			pane.Refresh(s)
		}
		if pane.Pending() {
			pane.SetError(nil)
		}
	}
}

func (m *Model) clearError() {
	if m.errorPanel.Visible() {
		m.errorPanel.Clear()
		m.layout()
	}
}

func describe(p events.GenerationPayload) string {
	return fmt.Sprintf("#%d %s/%s · %s", p.ID, p.Query.Statistic, p.Query.PlotKind, p.State)
}
