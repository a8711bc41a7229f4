// Command capture-plots records real backend plot payloads as JSON fixtures.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/clock"
	"github.com/billie-coop/gridscope/internal/logging"
	"github.com/billie-coop/gridscope/internal/orchestrator"
	"github.com/billie-coop/gridscope/internal/plot"
)

// CapturedPlot is one recorded backend answer.
type CapturedPlot struct {
	CapturedAt time.Time      `json:"captured_at"`
	NetworkID  string         `json:"network_id"`
	Case       CaptureCase    `json:"case"`
	CacheHit   bool           `json:"cache_hit"`
	Polls      int            `json:"polls"`
	Duration   float64        `json:"duration_seconds"`
	Payload    *plot.Payload  `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

func main() {
	baseURL := flag.String("api", "http://localhost:8000", "backend base URL")
	prefix := flag.String("prefix", "/api/v1", "API path prefix")
	limit := flag.Int("limit", 5, "maximum number of networks to capture")
	debug := flag.Bool("debug", false, "log every poll to stderr")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: capture-plots [flags] <output-dir>")
		fmt.Println("Example: capture-plots -api http://localhost:8000 testdata/plots")
		os.Exit(1)
	}

	outputDir := flag.Arg(0)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatal(err)
	}

	logger := logging.New(os.Stderr, *debug)
	client := api.NewClient(*baseURL, api.WithPrefix(*prefix))

	ctx := context.Background()
	health, err := client.Health(ctx)
	if err != nil {
		log.Fatal("backend is not reachable: ", err)
	}
	fmt.Printf("Backend %s (%s)\n", health.Status, health.Version)

	networks, err := client.ListNetworks(ctx, 0, *limit)
	if err != nil {
		log.Fatal("failed to list networks: ", err)
	}
	if len(networks.Data) == 0 {
		log.Fatal("the backend has no networks")
	}

	fmt.Printf("Found %d networks\n", networks.Meta.Total)
	for _, n := range networks.Data {
		fmt.Printf("  - %s (%s)\n", n.ID, n.DisplayName())
	}
	fmt.Println()

	// Cached plots come back without polling, so note how many there are.
	if stats, err := client.CacheStats(ctx); err == nil && stats.Available {
		fmt.Printf("Backend cache holds %d plots\n\n", stats.KeysByType["plot"])
	}

	// A private sequencer: every capture is its own current generation.
	backoff := orchestrator.DefaultBackoff()
	seq := &orchestrator.Sequencer{}
	requester := orchestrator.NewRequester(client, backoff, logger, nil)
	poller := orchestrator.NewPoller(client, backoff, seq, clock.Real{}, logger, nil)

	for _, n := range networks.Data {
		fmt.Printf("\n=== %s ===\n", n.ID)

		dir := filepath.Join(outputDir, sanitizeFilename(n.ID))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("Failed to create dir for %s: %v", n.ID, err)
			continue
		}

		for i, c := range DefaultCases {
			fmt.Printf("[%d/%d] %s... ", i+1, len(DefaultCases), c.Name)

			q := plot.Query{
				TargetIDs:  []string{n.ID},
				Statistic:  c.Statistic,
				PlotKind:   c.PlotKind,
				Parameters: c.Parameters,
			}

			start := time.Now()
			captured := capture(ctx, requester, poller, seq, q)
			captured.NetworkID = n.ID
			captured.Case = c
			captured.Duration = time.Since(start).Seconds()
			captured.CapturedAt = time.Now()

			filename := filepath.Join(dir, c.Name+".json")
			data, _ := json.MarshalIndent(captured, "", "  ")
			if err := os.WriteFile(filename, data, 0o644); err != nil {
				fmt.Printf("ERROR saving: %v\n", err)
				continue
			}

			switch {
			case captured.Error != "":
				fmt.Printf("%s error (%.1fs)\n", captured.ErrorKind, captured.Duration)
			case captured.CacheHit:
				fmt.Printf("OK cached\n")
			default:
				fmt.Printf("OK after %d polls (%.1fs)\n", captured.Polls, captured.Duration)
			}
		}
	}

	fmt.Println("\n✅ Plot capture complete!")
	fmt.Printf("Fixtures saved to: %s\n", outputDir)
}

func capture(ctx context.Context, r *orchestrator.Requester, p *orchestrator.Poller, seq *orchestrator.Sequencer, q plot.Query) CapturedPlot {
	var out CapturedPlot

	gen := seq.Next()
	sub, err := r.Submit(ctx, q)
	if err != nil {
		return withError(out, err)
	}
	if sub.Result != nil {
		out.CacheHit = true
		out.Payload = &sub.Result.Payload
		return out
	}

	res, err := p.Poll(ctx, gen, *sub.Handle, q, func(h plot.TaskHandle) {
		out.Polls = h.Attempt
	})
	if err != nil {
		return withError(out, err)
	}
	out.Payload = &res.Payload
	return out
}

func withError(out CapturedPlot, err error) CapturedPlot {
	out.Error = err.Error()
	out.ErrorKind = plot.Classify(err).String()
	var derr *plot.DomainError
	if errors.As(err, &derr) && derr.Detail != nil {
		out.Detail = map[string]any{
			"parameters":  derr.Detail.Parameters,
			"stack_trace": derr.Detail.StackTrace,
		}
	}
	return out
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, s)
}
