package ring

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"net"
	"strconv"
)

// twoPow64MinusOne is the modulus 2^64-1 used for identifier reduction.
// Reducing modulo 2^64-1 instead of 2^64 is a deliberate bit-exact
// compatibility choice (SPEC_FULL.md §9, "identifier reduction"), not a
// clean-room one: it introduces a small bias and makes ID(^uint64(0))
// unreachable, but every peer computes it the same way so the ring
// stays consistent.
var twoPow64MinusOne = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))

// digestToID reduces a SHA-256 digest, read little-endian, modulo 2^64-1
// and returns the lowest 64-bit limb of the result.
func digestToID(digest [sha256.Size]byte) ID {
	le := make([]byte, len(digest))
	for i, b := range digest {
		le[len(digest)-1-i] = b
	}
	n := new(big.Int).SetBytes(le)
	n.Mod(n, twoPow64MinusOne)
	return ID(n.Uint64())
}

// HashKey derives the ring identifier for a string key from its raw
// UTF-8 bytes.
func HashKey(key string) ID {
	return digestToID(sha256.Sum256([]byte(key)))
}

// HashAddr derives the ring identifier for a "host:port" network
// address. The canonical bytes are the address's IP octets followed by
// the port encoded little-endian (4+2 bytes for IPv4, 16+2 for IPv6).
func HashAddr(addr string) (ID, error) {
	canon, err := canonicalAddrBytes(addr)
	if err != nil {
		return 0, err
	}
	return digestToID(sha256.Sum256(canon)), nil
}

func canonicalAddrBytes(addr string) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ring: invalid address %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("ring: invalid port in %q: %w", addr, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("ring: could not resolve host %q: %w", host, err)
		}
		ip = ips[0]
	}

	var ipBytes []byte
	if v4 := ip.To4(); v4 != nil {
		ipBytes = v4
	} else {
		ipBytes = ip.To16()
	}
	if ipBytes == nil {
		return nil, fmt.Errorf("ring: unrecognized IP for host %q", host)
	}

	out := make([]byte, len(ipBytes)+2)
	copy(out, ipBytes)
	binary.LittleEndian.PutUint16(out[len(ipBytes):], uint16(port))
	return out, nil
}
