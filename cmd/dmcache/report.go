package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/sarchlab/dmcache/mem/cache/directmapped"
)

var (
	heading = color.New(color.Bold, color.FgCyan).SprintFunc()
	good    = color.New(color.FgGreen).SprintFunc()
	bad     = color.New(color.FgRed, color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

func printReport(w io.Writer, r runResult) {
	fmt.Fprintln(w, heading("Run"))
	fmt.Fprintf(w, "  seed           %d\n", r.Seed)
	fmt.Fprintf(w, "  cycles         %d\n", r.Cycles)
	fmt.Fprintf(w, "  status         %s\n", status(r))
	fmt.Fprintf(w, "  events         %d\n", r.Events)

	fmt.Fprintln(w, heading("Agent"))
	fmt.Fprintf(w, "  reads          %d\n", r.Agent.Reads)
	fmt.Fprintf(w, "  writes         %d\n", r.Agent.Writes)
	fmt.Fprintf(w, "  latency        %.2f ± %.2f cycles\n",
		r.LatencyMean, r.LatencyStdDev)

	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "  %s %s\n", bad("mismatch"), m)
	}

	fmt.Fprintln(w, heading("Cache"))
	fmt.Fprintf(w, "  hit rate       %.2f%% (%d hits, %d misses)\n",
		100*r.Cache.HitRate(), r.Cache.Hits, r.Cache.Misses)
	fmt.Fprintf(w, "  evictions      %d\n", r.Cache.Evictions)
	fmt.Fprintf(w, "  refills        %d\n", r.Cache.Refills)
	fmt.Fprintf(w, "  read time      %.2f cycles\n", r.ReadCycles)
	fmt.Fprintf(w, "  write time     %.2f cycles\n", r.WriteCycles)
	fmt.Fprintf(w, "  busy           %d cycles %s\n", r.BusyCycles,
		faint(fmt.Sprintf("%.1f%%", percent(r.BusyCycles, r.Cycles))))

	for _, step := range []string{"hit", "miss", "evict", "refill"} {
		fmt.Fprintf(w, "  %-14s %d requests\n", step, r.Steps[step])
	}

	total := r.Cache.TotalCycles()
	for _, s := range directmapped.AllStates() {
		n := r.Cache.StateCycles[s]
		if n == 0 {
			continue
		}

		fmt.Fprintf(w, "  %-22s %10d %s\n", s, n,
			faint(fmt.Sprintf("%5.1f%%", percent(n, total))))
	}

	fmt.Fprintln(w, heading("Memory"))
	fmt.Fprintf(w, "  line reads     %d (%d bytes)\n",
		r.Memory.Reads, r.Memory.BytesRead)
	fmt.Fprintf(w, "  line writes    %d (%d bytes enabled)\n",
		r.Memory.Writes, r.Memory.BytesWritten)
	fmt.Fprintf(w, "  max in flight  %d\n", r.Memory.MaxInFlight)
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}

	return 100 * float64(n) / float64(total)
}

func status(r runResult) string {
	switch {
	case r.Agent.Mismatches > 0:
		return bad(fmt.Sprintf("FAIL (%d mismatches)", r.Agent.Mismatches))
	case r.LimitReached:
		return bad("FAIL (cycle limit reached)")
	default:
		return good("PASS")
	}
}

func printSweep(w io.Writer, results []runResult) {
	fmt.Fprintln(w, heading(fmt.Sprintf(
		"%8s %10s %9s %9s %10s %10s  %s",
		"seed", "cycles", "hit rate", "evicts", "latency", "stddev", "status")))

	for _, r := range results {
		fmt.Fprintf(w, "%8d %10d %8.2f%% %9d %10.2f %10.2f  %s\n",
			r.Seed, r.Cycles, 100*r.Cache.HitRate(), r.Cache.Evictions,
			r.LatencyMean, r.LatencyStdDev, status(r))
	}
}

func printLayout(w io.Writer, l directmapped.Layout) {
	fmt.Fprintln(w, heading("Address layout"))
	fmt.Fprintf(w, "  address bits   %d\n", l.AddressBits())
	fmt.Fprintf(w, "  tag            %s\n", bitRange(l.AddressBits(), l.TagBits))
	fmt.Fprintf(w, "  line           %s\n",
		bitRange(l.OffsetBits+l.LineBits, l.LineBits))
	fmt.Fprintf(w, "  offset         %s\n", bitRange(l.OffsetBits, l.OffsetBits))
	fmt.Fprintf(w, "  lines          %d\n", l.NumLines())
	fmt.Fprintf(w, "  words per line %d\n", l.LanesPerLine())
	fmt.Fprintf(w, "  line bytes     %d\n", l.LineBytes)
}

// bitRange formats the n bits below bit top.
func bitRange(top, n int) string {
	if n == 0 {
		return faint("none")
	}

	return fmt.Sprintf("[%d:%d] (%d bits)", top-1, top-n, n)
}

func printSplit(w io.Writer, l directmapped.Layout, addr uint64) {
	offset, line, tag := l.Split(addr)

	fmt.Fprintf(w, "  0x%x -> tag 0x%x, line %d, offset %d, back-end line 0x%x\n",
		addr, tag, line, offset, l.BackEndAddress(line, tag))
}
