package alg

// Horner encodes args over a universe of the given size, first argument
// least significant.
func Horner(args []int, size int) int {
	k := 0
	for i := len(args) - 1; i >= 0; i-- {
		k = k*size + args[i]
	}
	return k
}

// HornerInv decodes k into n digits over size. It is the inverse of Horner.
func HornerInv(k, size, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = k % size
		k /= size
	}
	return out
}

// IntPow returns base^exp, or ok=false when the result overflows int.
func IntPow(base, exp int) (n int, ok bool) {
	const maxInt = int(^uint(0) >> 1)
	n = 1
	for i := 0; i < exp; i++ {
		if base != 0 && n > maxInt/base {
			return 0, false
		}
		n *= base
	}
	return n, true
}
