package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/billie-coop/gridscope/internal/plot"
)

// DefaultFacetParameter is the filter key each facet sets on the template.
const DefaultFacetParameter = "bus_carrier"

// ResolveFunc runs the submit/poll leg for one query of generation gen.
type ResolveFunc func(ctx context.Context, gen uint64, q plot.Query) (*plot.PlotResult, error)

// FanOut issues one query per facet and collects the results in facet order.
type FanOut struct {
	resolve   ResolveFunc
	seq       *Sequencer
	parameter string
	limit     int
}

// NewFanOut creates a coordinator running at most limit facets at once.
func NewFanOut(resolve ResolveFunc, seq *Sequencer, parameter string, limit int) *FanOut {
	if parameter == "" {
		parameter = DefaultFacetParameter
	}
	if limit <= 0 {
		limit = 4
	}
	return &FanOut{resolve: resolve, seq: seq, parameter: parameter, limit: limit}
}

// Run resolves template once per facet with the facet's value set as the
// filter parameter. A failing facet only fails its own slot. If gen is no
// longer current once every facet has settled, the whole aggregate is
// discarded and plot.ErrSuperseded returned.
//
// The returned error is nil when every facet succeeded, a
// *plot.PartialFailure when some did, and the first facet's error (wrapped)
// when none did.
func (f *FanOut) Run(ctx context.Context, gen uint64, facets []plot.Facet, template plot.Query) ([]plot.FacetResult, error) {
	results := make([]plot.FacetResult, len(facets))

	var g errgroup.Group
	g.SetLimit(f.limit)
	for i, facet := range facets {
		g.Go(func() error {
			q := template.WithParameter(f.parameter, facet.Key)
			res, err := f.resolve(ctx, gen, q)
			results[i] = plot.FacetResult{
				Key:         facet.Key,
				DisplayName: facet.DisplayName(),
				Result:      res,
				Err:         err,
			}
			if err != nil {
				results[i].Result = nil
			}
			return nil
		})
	}
	_ = g.Wait()

	if !f.seq.IsCurrent(gen) {
		return nil, plot.ErrSuperseded
	}
	return results, Aggregate(results)
}

// Aggregate summarises per-facet outcomes into one error.
func Aggregate(results []plot.FacetResult) error {
	var failed int
	var first error
	for _, r := range results {
		if !r.OK() {
			failed++
			if first == nil {
				first = r.Err
			}
		}
	}

	switch {
	case failed == 0:
		return nil
	case failed < len(results):
		return &plot.PartialFailure{Failed: failed, Total: len(results)}
	case first == nil:
		return fmt.Errorf("all %d facets failed", len(results))
	default:
		return fmt.Errorf("all %d facets failed: %w", len(results), first)
	}
}
