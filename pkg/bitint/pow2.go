// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size FFT
transforms and to fit captured blocks onto a transform length.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Length a 3528-sample block is zero-padded to
	fftSize := bitint.NextPowerOfTwo(3528) // Returns 4096

	// Length the same block is truncated to
	fftSize = bitint.PrevPowerOfTwo(3528) // Returns 2048

	// Validate a transform length
	ok := bitint.IsPowerOfTwo(fftSize)

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map onto themselves:

	size = 8:  bits.Len(7) = 3, 1 << 3 = 8
	size = 9:  bits.Len(8) = 4, 1 << 4 = 16

PrevPowerOfTwo keeps only the highest set bit:

	size = 9:  bits.Len(9) = 4, 1 << 3 = 8
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
//
// Examples:
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size, or 0 when size
// is not positive.
//
// Examples:
//
//	Input  Output
//	4      4
//	7      4
//	1      1
//	0      0
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n & (n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns log2(n) for a power of two n, and -1 otherwise.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
