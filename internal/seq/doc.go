// Package seq enumerates fixed-length integer tuples in place.
//
// Every Incrementor owns a caller-supplied slice. The caller processes the
// current tuple, then calls Increment to advance it; Increment returns
// false once the sequence is exhausted, after which the slice contents are
// unspecified. The rightmost position varies fastest unless noted.
package seq
