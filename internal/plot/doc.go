// Package plot holds the domain types shared by the plot-generation pipeline.
//
// A Query names what to plot (dataset ids, statistic, plot kind and free-form
// parameters). The backend answers a Query either immediately with a
// PlotResult (cache hit) or with a task id that is polled until it settles.
// Facet mode splits one Query into several, one per facet value, and collects
// the outcomes as FacetResults in submission order.
//
// The chart payload itself is opaque here: Data and Layout are kept as raw JSON
// and only interpreted by the renderers in internal/chart.
//
// Errors are typed so callers can tell a network problem from a computation
// failure reported by the backend:
//
//	var derr *plot.DomainError
//	if errors.As(err, &derr) {
//		fmt.Println(derr.Detail.StackTrace)
//	}
package plot
