package mem

// For capacity
const (
	_ = 1 << (10 * iota)
	KB
	MB
	GB
)
