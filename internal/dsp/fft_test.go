// SPDX-License-Identifier: MIT
package dsp

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/dsp/fourier"
)

func randomSignal(n int, seed uint64) (re, im []float32) {
	rng := rand.New(rand.NewPCG(seed, 0))
	re = make([]float32, n)
	im = make([]float32, n)
	for i := range re {
		re[i] = rng.Float32()*2 - 1
		im[i] = rng.Float32()*2 - 1
	}
	return re, im
}

func TestTransformLengthOne(t *testing.T) {
	re := []float32{3.5}
	im := []float32{-1.25}
	if err := Transform(re, im); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if re[0] != 3.5 || im[0] != -1.25 {
		t.Errorf("Transform of one point = (%v, %v), want identity", re[0], im[0])
	}
}

func TestTransformRejectsInvalidLengths(t *testing.T) {
	tests := []struct {
		name    string
		re, im  []float32
		wantErr error
	}{
		{"length three", make([]float32, 3), make([]float32, 3), ErrNotPowerOfTwo},
		{"empty", []float32{}, []float32{}, ErrNotPowerOfTwo},
		{"mismatched", make([]float32, 4), make([]float32, 8), ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Transform(tt.re, tt.im); !errors.Is(err, tt.wantErr) {
				t.Errorf("Transform error = %v, want %v", err, tt.wantErr)
			}
			if err := Inverse(tt.re, tt.im); !errors.Is(err, tt.wantErr) {
				t.Errorf("Inverse error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewPlan(12); !errors.Is(err, ErrNotPowerOfTwo) {
		t.Errorf("NewPlan(12) error = %v, want ErrNotPowerOfTwo", err)
	}
}

func TestTransformImpulseAndDC(t *testing.T) {
	const n = 16

	re := make([]float32, n)
	im := make([]float32, n)
	re[0] = 1
	if err := Transform(re, im); err != nil {
		t.Fatal(err)
	}
	for k := range re {
		if math.Abs(float64(re[k])-1) > 1e-6 || math.Abs(float64(im[k])) > 1e-6 {
			t.Errorf("impulse bin %d = (%v, %v), want (1, 0)", k, re[k], im[k])
		}
	}

	for i := range re {
		re[i], im[i] = 1, 0
	}
	if err := Transform(re, im); err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(re[0])-n) > 1e-5 {
		t.Errorf("DC bin = %v, want %d", re[0], n)
	}
	for k := 1; k < n; k++ {
		if math.Hypot(float64(re[k]), float64(im[k])) > 1e-5 {
			t.Errorf("bin %d of a constant = (%v, %v), want 0", k, re[k], im[k])
		}
	}
}

func TestTransformRoundTrip(t *testing.T) {
	for _, n := range []int{2, 4, 64, 1024} {
		re, im := randomSignal(n, uint64(n))
		origRe := append([]float32(nil), re...)
		origIm := append([]float32(nil), im...)

		if err := Transform(re, im); err != nil {
			t.Fatalf("N=%d Transform: %v", n, err)
		}
		if err := Inverse(re, im); err != nil {
			t.Fatalf("N=%d Inverse: %v", n, err)
		}
		for i := range re {
			if math.Abs(float64(re[i]-origRe[i])) > 1e-4 || math.Abs(float64(im[i]-origIm[i])) > 1e-4 {
				t.Fatalf("N=%d sample %d: got (%v, %v), want (%v, %v)",
					n, i, re[i], im[i], origRe[i], origIm[i])
			}
		}
	}
}

func TestTransformMatchesGonum(t *testing.T) {
	for _, n := range []int{8, 256, 2048} {
		re, _ := randomSignal(n, 7)
		im := make([]float32, n)

		seq := make([]float64, n)
		for i, v := range re {
			seq[i] = float64(v)
		}
		want := fourier.NewFFT(n).Coefficients(nil, seq)

		if err := Transform(re, im); err != nil {
			t.Fatalf("N=%d: %v", n, err)
		}

		tol := 1e-5 * float64(n)
		for k, c := range want {
			got := complex(float64(re[k]), float64(im[k]))
			// Compare modulus and real part, which do not depend on the
			// sign convention of the exponent.
			if math.Abs(cmplx.Abs(got)-cmplx.Abs(c)) > tol || math.Abs(real(got)-real(c)) > tol {
				t.Fatalf("N=%d bin %d: got %v, gonum %v", n, k, got, c)
			}
		}
	}
}

func TestTransformConjugateSymmetryForRealInput(t *testing.T) {
	const n = 128
	re, _ := randomSignal(n, 3)
	im := make([]float32, n)
	if err := Transform(re, im); err != nil {
		t.Fatal(err)
	}
	for k := 1; k < n/2; k++ {
		if math.Abs(float64(re[k]-re[n-k])) > 1e-4 || math.Abs(float64(im[k]+im[n-k])) > 1e-4 {
			t.Errorf("bin %d = (%v, %v), bin %d = (%v, %v), want conjugates",
				k, re[k], im[k], n-k, re[n-k], im[n-k])
		}
	}
}

func TestPlanMatchesTransform(t *testing.T) {
	for _, n := range []int{1, 2, 32, 512} {
		plan, err := NewPlan(n)
		if err != nil {
			t.Fatalf("NewPlan(%d): %v", n, err)
		}
		if plan.Len() != n {
			t.Errorf("Len() = %d, want %d", plan.Len(), n)
		}

		re, im := randomSignal(n, 11)
		pre := append([]float32(nil), re...)
		pim := append([]float32(nil), im...)

		if err := Transform(re, im); err != nil {
			t.Fatal(err)
		}
		if err := plan.Transform(pre, pim); err != nil {
			t.Fatal(err)
		}
		for i := range re {
			if math.Abs(float64(re[i]-pre[i])) > 1e-6 || math.Abs(float64(im[i]-pim[i])) > 1e-6 {
				t.Fatalf("N=%d bin %d: plan (%v, %v), Transform (%v, %v)", n, i, pre[i], pim[i], re[i], im[i])
			}
		}

		if err := plan.Inverse(pre, pim); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPlanRejectsOtherLengths(t *testing.T) {
	plan, err := NewPlan(64)
	if err != nil {
		t.Fatal(err)
	}
	re, im := make([]float32, 32), make([]float32, 32)
	if err := plan.Transform(re, im); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Transform with 32 samples on a 64-point plan: %v, want ErrLengthMismatch", err)
	}
}

func TestPlanDoesNotAllocate(t *testing.T) {
	plan, err := NewPlan(1024)
	if err != nil {
		t.Fatal(err)
	}
	re, im := randomSignal(1024, 5)
	allocs := testing.AllocsPerRun(50, func() {
		_ = plan.Transform(re, im)
		_ = plan.Inverse(re, im)
	})
	if allocs != 0 {
		t.Errorf("Plan allocated %.1f times per run, want 0", allocs)
	}
}

func BenchmarkTransform(b *testing.B) {
	re, im := randomSignal(1024, 1)
	b.ReportAllocs()
	for b.Loop() {
		_ = Transform(re, im)
	}
}

func BenchmarkPlanTransform(b *testing.B) {
	plan, _ := NewPlan(1024)
	re, im := randomSignal(1024, 1)
	b.ReportAllocs()
	for b.Loop() {
		_ = plan.Transform(re, im)
	}
}
