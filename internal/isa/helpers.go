package isa

import "strconv"

// rname builds a numbered register name like "r3" or "v9".
func rname(prefix string, n int) string {
	return prefix + strconv.Itoa(n)
}

// slice64 builds a decorated sub-field name such as "v3[0:64]".
func slice64(prefix string, n int, lo, hi int) string {
	return rname(prefix, n) + bracket(lo, hi)
}

// bracket renders the "[lo:hi]" suffix used to decorate packed sub-fields.
func bracket(lo, hi int) string {
	return "[" + strconv.Itoa(lo) + ":" + strconv.Itoa(hi) + "]"
}
