package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBetweenFullRing(t *testing.T) {
	require.True(t, Between(0, 5, 5), "start == end must mean the full ring")
	require.True(t, Between(0xFFFFFFFFFFFFFFFF, 5, 5), "start == end must mean the full ring, any x")
}

func TestBetweenNormal(t *testing.T) {
	cases := []struct {
		x, start, end ID
		want          bool
	}{
		{5, 1, 10, true},
		{1, 1, 10, false}, // exclusive start
		{10, 1, 10, true}, // inclusive end
		{11, 1, 10, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Between(c.x, c.start, c.end))
	}
}

func TestBetweenWrapAround(t *testing.T) {
	// ring wraps from 0xF000 exclusive to 0x1000 inclusive
	start, end := ID(0xF000), ID(0x1000)
	require.True(t, Between(0x0001, start, end), "0x0001 should be inside the wrap arc (start,end]")
	require.False(t, Between(0x8000, start, end), "0x8000 lies strictly between end and start, should be outside")
	require.True(t, Between(0x1000, start, end), "end itself is inclusive")
	require.False(t, Between(0xF000, start, end), "start itself is exclusive")
}

func TestAddSubWrap(t *testing.T) {
	var max ID = 0xFFFFFFFFFFFFFFFF
	require.Equal(t, ID(0), max.Add(1), "Add must wrap modulo 2^64")

	var zero ID = 0
	require.Equal(t, max, zero.Sub(1), "Sub must wrap modulo 2^64")
}
