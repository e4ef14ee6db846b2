package cache

import "fmt"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64 // removed because of the size bound
	Expirations uint64 // removed because their TTL elapsed
	Size        int
}

// HitRatio returns hits / (hits + misses), or 0 when the cache was never read.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (s Stats) String() string {
	return fmt.Sprintf("size=%d hits=%d misses=%d evictions=%d expirations=%d",
		s.Size, s.Hits, s.Misses, s.Evictions, s.Expirations)
}
