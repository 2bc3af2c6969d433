// SPDX-License-Identifier: MIT
package dsp

import "errors"

var (
	// ErrNotPowerOfTwo is returned when a transform is asked to run over a
	// length that is not a power of two.
	ErrNotPowerOfTwo = errors.New("transform length is not a power of two")

	// ErrLengthMismatch is returned when the real and imaginary parts of a
	// complex buffer do not have the same length.
	ErrLengthMismatch = errors.New("real and imaginary lengths differ")

	// ErrDegenerateFilter is returned at construction when cutoffs or the
	// sample rate would produce non-finite or unstable coefficients.
	ErrDegenerateFilter = errors.New("degenerate filter parameters")

	// ErrBlockSize is returned when a processor receives a block whose
	// length differs from the one it was built for.
	ErrBlockSize = errors.New("unexpected block size")
)
