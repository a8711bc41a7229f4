package mockapi

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/plot"
)

var sampleCarriers = []string{"wind", "solar", "gas", "hydro"}

// SamplePayload builds a small plotly-style figure. Values are derived from
// the request so equal requests always produce equal charts.
func SamplePayload(req api.PlotRequest) plot.Payload {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%v|%s|%s|%v", req.NetworkIDs, req.Statistic, req.PlotType, req.Parameters)
	seed := h.Sum32()

	carriers := sampleCarriers
	if c, ok := req.Parameters["bus_carrier"].(string); ok && c != "" {
		carriers = []string{c}
	}

	traceType := "bar"
	if req.PlotType == "line" || req.PlotType == "area" || req.PlotType == "scatter" {
		traceType = "scatter"
	}

	x := []string{"2030", "2035", "2040", "2045", "2050"}
	traces := make([]map[string]any, 0, len(carriers))
	for i, c := range carriers {
		y := make([]float64, len(x))
		for j := range y {
			y[j] = float64((seed>>uint(i+j))%97) + float64(10*(j+1))
		}
		trace := map[string]any{"type": traceType, "name": c, "x": x, "y": y}
		if req.PlotType == "area" {
			trace["stackgroup"] = "one"
		}
		traces = append(traces, trace)
	}

	layout := map[string]any{
		"title": map[string]any{"text": fmt.Sprintf("%s (%s)", req.Statistic, req.PlotType)},
		"xaxis": map[string]any{"title": map[string]any{"text": "period"}},
		"yaxis": map[string]any{"title": map[string]any{"text": req.Statistic}},
	}

	data, _ := json.Marshal(traces)
	lay, _ := json.Marshal(layout)
	return plot.Payload{Data: data, Layout: lay}
}

// SampleTable builds a statistics frame in the backend's "split" layout:
// one row per carrier, one column per period.
func SampleTable(req api.PlotRequest) map[string]any {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%v|%s|%v", req.NetworkIDs, req.Statistic, req.Parameters)
	seed := h.Sum32()

	carriers := sampleCarriers
	if c, ok := req.Parameters["bus_carrier"].(string); ok && c != "" {
		carriers = []string{c}
	}
	periods := []int{2030, 2040, 2050}

	index := make([]string, len(carriers))
	data := make([][]float64, len(carriers))
	for i, c := range carriers {
		index[i] = fmt.Sprintf("('Generator', '%s')", c)
		data[i] = make([]float64, len(periods))
		for j := range periods {
			data[i][j] = float64((seed>>uint(i+j))%500) / 10
		}
	}
	return map[string]any{"index": index, "columns": periods, "data": data}
}

func cacheKey(req api.PlotRequest) string {
	return plot.Query{
		TargetIDs:  req.NetworkIDs,
		Statistic:  req.Statistic,
		PlotKind:   req.PlotType,
		Parameters: req.Parameters,
	}.Key()
}

func payloadFor(req api.PlotRequest, s Script) plot.Payload {
	if s.Payload != nil {
		return *s.Payload
	}
	return SamplePayload(req)
}

// DemoNetworks is the catalog served by cmd/gridscope-mock.
func DemoNetworks() []api.Network {
	carriers := map[string]map[string]any{
		"AC":          {"nice_name": "AC grid"},
		"DC":          {"nice_name": "DC link"},
		"H2":          {"nice_name": "Hydrogen"},
		"low voltage": {"nice_name": "Low voltage"},
	}
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []api.Network{
		{
			ID:              "de-2030",
			CreatedAt:       created,
			Filename:        "elec_s_37_lv1.0_2030.nc",
			FileSize:        48 << 20,
			Name:            "Germany 2030",
			DimensionsCount: map[string]int{"snapshots": 8760, "periods": 1},
			ComponentsCount: map[string]int{"Bus": 37, "Generator": 412, "Line": 54},
			Facets:          &api.Facets{Carriers: carriers, Countries: []string{"DE"}},
			Tags:            []string{"sector-coupled"},
		},
		{
			ID:              "eu-2050",
			CreatedAt:       created.Add(24 * time.Hour),
			Filename:        "elec_s_128_lvopt_2050.nc",
			FileSize:        212 << 20,
			Name:            "Europe 2050",
			DimensionsCount: map[string]int{"snapshots": 2920, "periods": 3},
			ComponentsCount: map[string]int{"Bus": 128, "Generator": 1530, "Link": 640},
			Facets:          &api.Facets{Carriers: carriers, Countries: []string{"DE", "FR", "PL", "ES"}},
		},
		{
			ID:        "toy",
			CreatedAt: created.Add(48 * time.Hour),
			Filename:  "toy.nc",
			FileSize:  1 << 20,
		},
	}
}
