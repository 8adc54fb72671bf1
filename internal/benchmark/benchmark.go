// Package benchmark measures the export, import and persistence round trip
// on generated graphs.
//
// A run builds a tree of folders with cross links, then repeats for every
// round: export all tables, mark a share of the rows for update, import them
// and, when a database path is set, save and reload the graph. Each phase is
// timed per round and summarized as latency percentiles.
package benchmark

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"time"
)

// LatencyMetrics summarizes the durations of one phase.
type LatencyMetrics struct {
	Min  time.Duration
	P50  time.Duration // Median
	Mean time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration

	// Raw durations, sorted
	Durations []time.Duration `json:"-"`
}

// ResourceMetrics captures heap usage around a run.
type ResourceMetrics struct {
	MemoryBeforeBytes uint64
	MemoryAfterBytes  uint64
	MemoryPeakBytes   uint64
	MemoryDeltaBytes  uint64
}

// ComputeStats calculates statistics from raw durations.
func ComputeStats(durations []time.Duration) LatencyMetrics {
	if len(durations) == 0 {
		return LatencyMetrics{}
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyMetrics{
		Min:       sorted[0],
		P50:       sorted[len(sorted)*50/100],
		Mean:      sum / time.Duration(len(sorted)),
		P95:       sorted[len(sorted)*95/100],
		P99:       sorted[len(sorted)*99/100],
		Max:       sorted[len(sorted)-1],
		Durations: sorted,
	}
}

// GetMemoryStats returns current memory usage statistics.
func GetMemoryStats() ResourceMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ResourceMetrics{
		MemoryBeforeBytes: m.Alloc,
		MemoryAfterBytes:  m.Alloc,
		MemoryPeakBytes:   m.Sys,
	}
}

// CompareMemoryStats computes the delta between before and after memory stats.
func CompareMemoryStats(before, after ResourceMetrics) ResourceMetrics {
	var delta uint64
	if after.MemoryAfterBytes > before.MemoryBeforeBytes {
		delta = after.MemoryAfterBytes - before.MemoryBeforeBytes
	}
	return ResourceMetrics{
		MemoryBeforeBytes: before.MemoryBeforeBytes,
		MemoryAfterBytes:  after.MemoryAfterBytes,
		MemoryPeakBytes:   after.MemoryPeakBytes,
		MemoryDeltaBytes:  delta,
	}
}

// FormatBytes formats bytes into a human-readable string.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration into a human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Microsecond {
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// PrintResult writes a formatted benchmark result to w.
func PrintResult(w io.Writer, result *Result) {
	cfg := result.Config
	fmt.Fprintf(w, "\n=== Benchmark Results ===\n\n")

	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Nodes:             %d\n", cfg.Nodes)
	fmt.Fprintf(w, "  Fanout:            %d\n", cfg.Fanout)
	fmt.Fprintf(w, "  Links per node:    %d\n", cfg.Links)
	fmt.Fprintf(w, "  Rounds:            %d\n", cfg.Rounds)
	fmt.Fprintf(w, "  Updated %%:         %.1f%%\n", cfg.UpdatePct*100)
	fmt.Fprintf(w, "\n")

	for _, p := range result.Phases {
		fmt.Fprintf(w, "%s:\n", p.Name)
		fmt.Fprintf(w, "  Min:       %s\n", FormatDuration(p.Latency.Min))
		fmt.Fprintf(w, "  P50:       %s\n", FormatDuration(p.Latency.P50))
		fmt.Fprintf(w, "  Mean:      %s\n", FormatDuration(p.Latency.Mean))
		fmt.Fprintf(w, "  Max:       %s\n", FormatDuration(p.Latency.Max))
		if p.Latency.Mean > 0 {
			fmt.Fprintf(w, "  Rows/sec:  %.0f\n", float64(result.Rows)/p.Latency.Mean.Seconds())
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "Resources:\n")
	fmt.Fprintf(w, "  Memory Before:     %s\n", FormatBytes(result.Resources.MemoryBeforeBytes))
	fmt.Fprintf(w, "  Memory After:      %s\n", FormatBytes(result.Resources.MemoryAfterBytes))
	fmt.Fprintf(w, "  Memory Peak:       %s\n", FormatBytes(result.Resources.MemoryPeakBytes))
	fmt.Fprintf(w, "  Memory Delta:      %s\n", FormatBytes(result.Resources.MemoryDeltaBytes))
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Overall:\n")
	fmt.Fprintf(w, "  Rows per export:   %d\n", result.Rows)
	fmt.Fprintf(w, "  Rows per import:   %d\n", result.Updated)
	fmt.Fprintf(w, "  Total Duration:    %s\n", FormatDuration(result.TotalDuration))
	fmt.Fprintf(w, "\n")
}
