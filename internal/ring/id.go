// Package ring implements identifier arithmetic for the 64-bit Chord ring.
package ring

// ID is a point on the circular identifier space of size 2^64.
type ID uint64

// Add returns id+other, wrapping modulo 2^64.
func (id ID) Add(other ID) ID {
	return id + other
}

// Sub returns id-other, wrapping modulo 2^64.
func (id ID) Sub(other ID) ID {
	return id - other
}

// Between reports whether x lies in the half-open arc (start, end],
// walking clockwise from start. start == end denotes the full ring.
func Between(x, start, end ID) bool {
	if start == end {
		return true
	}
	if start < end {
		return start < x && x <= end
	}
	// wrap-around arc
	return x > start || x <= end
}
