package directmapped

// Stats counts what the controller has done.
type Stats struct {
	// Reads and Writes count acknowledged front-end requests.
	Reads  uint64
	Writes uint64

	// Hits counts requests that hit on their first tag test. Misses counts
	// requests that did not.
	Hits   uint64
	Misses uint64

	Evictions uint64
	Refills   uint64

	// StateCycles counts the cycles spent in each state.
	StateCycles [numStates]uint64
}

// Requests returns the number of acknowledged requests.
func (s Stats) Requests() uint64 {
	return s.Reads + s.Writes
}

// HitRate returns the fraction of requests that hit. It is 0 before the first
// request.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// TotalCycles returns the number of cycles the controller has been clocked.
func (s Stats) TotalCycles() uint64 {
	var total uint64
	for _, n := range s.StateCycles {
		total += n
	}

	return total
}
