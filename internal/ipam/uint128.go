package ipam

import (
	"encoding/binary"
	"math/bits"
	"net/netip"
)

// uint128 is an address as an unsigned integer of its family's width.
// IPv4 addresses only use the low 32 bits.
type uint128 struct {
	hi, lo uint64
}

func fromAddr(a netip.Addr) uint128 {
	if a.Is4() {
		b := a.As4()
		return uint128{lo: uint64(binary.BigEndian.Uint32(b[:]))}
	}
	b := a.As16()
	return uint128{
		hi: binary.BigEndian.Uint64(b[:8]),
		lo: binary.BigEndian.Uint64(b[8:]),
	}
}

func (u uint128) addr(is4 bool) netip.Addr {
	if is4 {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(u.lo))
		return netip.AddrFrom4(b)
	}
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], u.hi)
	binary.BigEndian.PutUint64(b[8:], u.lo)
	return netip.AddrFrom16(b)
}

func (u uint128) cmp(v uint128) int {
	switch {
	case u.hi < v.hi:
		return -1
	case u.hi > v.hi:
		return 1
	case u.lo < v.lo:
		return -1
	case u.lo > v.lo:
		return 1
	}
	return 0
}

func (u uint128) addOne() uint128 {
	lo, carry := bits.Add64(u.lo, 1, 0)
	return uint128{hi: u.hi + carry, lo: lo}
}

func (u uint128) subOne() uint128 {
	lo, borrow := bits.Sub64(u.lo, 1, 0)
	return uint128{hi: u.hi - borrow, lo: lo}
}

func (u uint128) sub(v uint128) uint128 {
	lo, borrow := bits.Sub64(u.lo, v.lo, 0)
	return uint128{hi: u.hi - v.hi - borrow, lo: lo}
}

func (u uint128) or(v uint128) uint128 {
	return uint128{hi: u.hi | v.hi, lo: u.lo | v.lo}
}

// trailingZeros is 128 for zero.
func (u uint128) trailingZeros() int {
	if u.lo != 0 {
		return bits.TrailingZeros64(u.lo)
	}
	return 64 + bits.TrailingZeros64(u.hi)
}

// lowMask has the k least significant bits set.
func lowMask(k int) uint128 {
	switch {
	case k <= 0:
		return uint128{}
	case k < 64:
		return uint128{lo: 1<<uint(k) - 1}
	case k < 128:
		return uint128{hi: 1<<uint(k-64) - 1, lo: ^uint64(0)}
	}
	return uint128{hi: ^uint64(0), lo: ^uint64(0)}
}
