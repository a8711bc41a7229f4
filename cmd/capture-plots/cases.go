package main

// CaptureCase is one statistic/kind combination to record per network.
type CaptureCase struct {
	Name       string         `json:"name"`
	Statistic  string         `json:"statistic"`
	PlotKind   string         `json:"plot_kind"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// DefaultCases covers the plots the dashboard opens with plus the
// statistics most often faceted by carrier.
var DefaultCases = []CaptureCase{
	{Name: "energy_balance_area", Statistic: "energy_balance", PlotKind: "area"},
	{Name: "energy_balance_bar", Statistic: "energy_balance", PlotKind: "bar"},
	{Name: "capex_bar", Statistic: "capex", PlotKind: "bar"},
	{Name: "opex_bar", Statistic: "opex", PlotKind: "bar"},
	{Name: "installed_capacity_bar", Statistic: "installed_capacity", PlotKind: "bar"},
	{Name: "optimal_capacity_bar", Statistic: "optimal_capacity", PlotKind: "bar"},
	{Name: "curtailment_line", Statistic: "curtailment", PlotKind: "line"},
	{Name: "capacity_factor_box", Statistic: "capacity_factor", PlotKind: "box"},
	{Name: "supply_area_ac", Statistic: "supply", PlotKind: "area", Parameters: map[string]any{"bus_carrier": "AC"}},
	{Name: "withdrawal_area_ac", Statistic: "withdrawal", PlotKind: "area", Parameters: map[string]any{"bus_carrier": "AC"}},
	{Name: "prices_histogram", Statistic: "prices", PlotKind: "histogram"},
}
