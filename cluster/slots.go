package cluster

import "embedvalkey/pkg/hashkit"

type slotRange struct {
	start, end int
}

// slotRanges splits the hash slots into n contiguous inclusive ranges. The
// last range takes the remainder.
func slotRanges(n int) []slotRange {
	if n <= 0 {
		return nil
	}
	per := hashkit.SlotCount / n
	rs := make([]slotRange, n)
	for i := range rs {
		rs[i].start = i * per
		rs[i].end = rs[i].start + per - 1
	}
	rs[n-1].end = hashkit.SlotCount - 1
	return rs
}
