// Package keys defines the variable identifiers used throughout the
// library. A Key is a plain uint64; Symbol packs a single character tag
// and an index into one, so that 'x'-tagged poses and 'l'-tagged
// landmarks stay readable in logs and error messages.
package keys

import (
	"sort"
	"strconv"
)

const indexBits = 56

const indexMask = (Key(1) << indexBits) - 1

// Key identifies one variable in a factor graph.
type Key uint64

// Symbol returns the key formed from a character tag and an index,
// e.g. Symbol('x', 3) for the fourth pose.
func Symbol(c byte, index uint64) Key {
	return Key(c)<<indexBits | (Key(index) & indexMask)
}

// Chr returns the tag character of a symbol key.
func (k Key) Chr() byte {
	return byte(k >> indexBits)
}

// Index returns the index part of a symbol key.
func (k Key) Index() uint64 {
	return uint64(k & indexMask)
}

// String renders symbol keys as tag plus index ("x3"). Keys whose top
// byte is not a letter render as plain decimal.
func (k Key) String() string {
	c := k.Chr()
	if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return string(c) + strconv.FormatUint(k.Index(), 10)
	}
	return strconv.FormatUint(uint64(k), 10)
}

// Sort orders ks ascending in place and returns it.
func Sort(ks []Key) []Key {
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}
