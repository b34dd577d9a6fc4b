package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashKeyDeterministic(t *testing.T) {
	a := HashKey("alpha")
	b := HashKey("alpha")
	require.Equal(t, a, b, "HashKey must be deterministic")
	require.NotEqual(t, a, HashKey("beta"), "different keys should (almost certainly) hash differently")
}

func TestHashAddrDeterministic(t *testing.T) {
	a, err := HashAddr("127.0.0.1:9001")
	require.NoError(t, err)
	b, err := HashAddr("127.0.0.1:9001")
	require.NoError(t, err)
	require.Equal(t, a, b, "HashAddr must be deterministic")

	c, err := HashAddr("127.0.0.1:9002")
	require.NoError(t, err)
	require.NotEqual(t, a, c, "different ports should (almost certainly) hash differently")
}

func TestHashAddrInvalid(t *testing.T) {
	_, err := HashAddr("not-an-address")
	require.Error(t, err, "expected error for address with no port")
}
