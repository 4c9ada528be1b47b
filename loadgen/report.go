package loadgen

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"storegate/utils"
)

// EndpointStats aggregates every sample recorded for one endpoint label.
type EndpointStats struct {
	Endpoint string
	Scenario string
	Count    int
	Errors   int
	Statuses map[int]int

	Min  time.Duration
	Mean time.Duration
	P50  time.Duration
	P90  time.Duration
	P99  time.Duration
	Max  time.Duration

	latencies []time.Duration
}

// Report is the aggregated outcome of a load run.
type Report struct {
	Elapsed time.Duration
	Total   int
	Errors  int

	endpoints map[string]*EndpointStats
}

func newReport() *Report {
	return &Report{endpoints: make(map[string]*EndpointStats)}
}

func (r *Report) observe(s Sample) {
	r.Total++
	if s.Failed {
		r.Errors++
	}

	stats, ok := r.endpoints[s.Endpoint]
	if !ok {
		stats = &EndpointStats{
			Endpoint: s.Endpoint,
			Scenario: s.Scenario,
			Statuses: make(map[int]int),
		}
		r.endpoints[s.Endpoint] = stats
	}
	stats.Count++
	if s.Failed {
		stats.Errors++
	}
	stats.Statuses[s.Status]++
	stats.latencies = append(stats.latencies, s.Latency)
}

// finalize computes the latency summary per endpoint. Called once, after the
// last sample is in.
func (r *Report) finalize() {
	for _, stats := range r.endpoints {
		if len(stats.latencies) == 0 {
			continue
		}
		sort.Slice(stats.latencies, func(i, j int) bool {
			return stats.latencies[i] < stats.latencies[j]
		})
		var total time.Duration
		for _, latency := range stats.latencies {
			total += latency
		}
		stats.Min = stats.latencies[0]
		stats.Max = stats.latencies[len(stats.latencies)-1]
		stats.Mean = total / time.Duration(len(stats.latencies))
		stats.P50 = percentile(stats.latencies, 0.50)
		stats.P90 = percentile(stats.latencies, 0.90)
		stats.P99 = percentile(stats.latencies, 0.99)
		stats.latencies = nil
	}
}

// percentile reads the p-quantile from an ascending-sorted slice using the
// nearest-rank method.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.5) - 1
	rank = utils.Max(0, utils.Min(rank, len(sorted)-1))
	return sorted[rank]
}

// ErrorRate returns the failed-request fraction over the whole run.
func (r *Report) ErrorRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Errors) / float64(r.Total)
}

// Exceeded reports whether the run's error rate breached the plan's limit.
// A zero limit disables the check.
func (r *Report) Exceeded(limit float64) bool {
	return limit > 0 && r.ErrorRate() > limit
}

// Endpoint returns the stats recorded for one endpoint label, or nil.
func (r *Report) Endpoint(label string) *EndpointStats {
	return r.endpoints[label]
}

// Endpoints returns per-endpoint stats sorted by endpoint label.
func (r *Report) Endpoints() []*EndpointStats {
	out := make([]*EndpointStats, 0, len(r.endpoints))
	for _, stats := range r.endpoints {
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Endpoint < out[j].Endpoint
	})
	return out
}

// WriteText renders the operator-facing report table.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "\nLoad run: %d requests in %s, %d errors (%.2f%%)\n\n",
		r.Total, utils.FormatDuration(r.Elapsed), r.Errors, r.ErrorRate()*100)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tCOUNT\tERRORS\tMIN\tMEAN\tP50\tP90\tP99\tMAX\tSTATUSES")
	for _, stats := range r.Endpoints() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			stats.Endpoint, stats.Count, stats.Errors,
			utils.FormatDuration(stats.Min), utils.FormatDuration(stats.Mean),
			utils.FormatDuration(stats.P50), utils.FormatDuration(stats.P90),
			utils.FormatDuration(stats.P99), utils.FormatDuration(stats.Max),
			formatStatuses(stats.Statuses))
	}
	_ = tw.Flush()
}

// formatStatuses renders a status histogram as "200:41 404:2". Status zero
// (no response at all) prints as "err".
func formatStatuses(statuses map[int]int) string {
	codes := make([]int, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		label := strconv.Itoa(code)
		if code == 0 {
			label = "err"
		}
		parts = append(parts, fmt.Sprintf("%s:%d", label, statuses[code]))
	}
	return strings.Join(parts, " ")
}

// WriteCSV exports the per-endpoint summary for spreadsheet comparison of
// runs, one row per endpoint, latencies in milliseconds.
func (r *Report) WriteCSV(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "endpoint,scenario,count,errors,min_ms,mean_ms,p50_ms,p90_ms,p99_ms,max_ms"); err != nil {
		return err
	}
	for _, stats := range r.Endpoints() {
		_, err := fmt.Fprintf(w, "%s,%s,%d,%d,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f\n",
			utils.CSVEscape(stats.Endpoint), utils.CSVEscape(stats.Scenario),
			stats.Count, stats.Errors,
			millis(stats.Min), millis(stats.Mean), millis(stats.P50),
			millis(stats.P90), millis(stats.P99), millis(stats.Max))
		if err != nil {
			return err
		}
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
