package plot

import "sort"

// Statistics the backend accepts. Anything else is rejected before submission.
var allowedStatistics = map[string]struct{}{
	"capex":              {},
	"installed_capex":    {},
	"expanded_capex":     {},
	"opex":               {},
	"system_cost":        {},
	"revenue":            {},
	"market_value":       {},
	"installed_capacity": {},
	"expanded_capacity":  {},
	"optimal_capacity":   {},
	"supply":             {},
	"withdrawal":         {},
	"curtailment":        {},
	"capacity_factor":    {},
	"transmission":       {},
	"energy_balance":     {},
	"prices":             {},
}

var allowedPlotKinds = map[string]struct{}{
	"area":      {},
	"bar":       {},
	"map":       {},
	"scatter":   {},
	"line":      {},
	"box":       {},
	"violin":    {},
	"histogram": {},
}

// IsAllowedStatistic reports whether name is a known statistic.
func IsAllowedStatistic(name string) bool {
	_, ok := allowedStatistics[name]
	return ok
}

// IsAllowedPlotKind reports whether kind is a known plot kind.
func IsAllowedPlotKind(kind string) bool {
	_, ok := allowedPlotKinds[kind]
	return ok
}

// Statistics returns the allowed statistics sorted by name.
func Statistics() []string {
	return sortedKeys(allowedStatistics)
}

// PlotKinds returns the allowed plot kinds sorted by name.
func PlotKinds() []string {
	return sortedKeys(allowedPlotKinds)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
