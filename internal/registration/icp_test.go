package registration

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// cloudOnSphere builds a deterministic non-symmetric point cloud.
func cloudOnSphere(n int, seed int64) [][3]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][3]float64, n)
	for i := range out {
		// Stretch each axis differently so the cloud has no rotational
		// symmetry the fit could slide along.
		out[i] = [3]float64{
			rng.NormFloat64() * 30,
			rng.NormFloat64() * 18,
			rng.NormFloat64() * 9,
		}
	}
	return out
}

func rotateZ(points [][3]float64, angle float64, shift [3]float64) [][3]float64 {
	c, s := math.Cos(angle), math.Sin(angle)
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = [3]float64{
			c*p[0] - s*p[1] + shift[0],
			s*p[0] + c*p[1] + shift[1],
			p[2] + shift[2],
		}
	}
	return out
}

func TestICPRecoversKnownTransform(t *testing.T) {
	target := cloudOnSphere(800, 11)
	// The source is the target rotated and shifted; registering it
	// back onto the target must undo the motion.
	source := rotateZ(target, 0.1, [3]float64{2, -1, 1.5})

	result, err := ICP(source, target, DefaultConfig())
	if err != nil {
		t.Fatalf("ICP: %v", err)
	}
	aligned := result.ApplyAll(source)
	for i := range aligned {
		for c := 0; c < 3; c++ {
			if math.Abs(aligned[i][c]-target[i][c]) > 0.5 {
				t.Fatalf("point %d component %d off by %.3f", i, c,
					math.Abs(aligned[i][c]-target[i][c]))
			}
		}
	}
	if result.Cost > 1 {
		t.Fatalf("Cost = %v for a recoverable transform", result.Cost)
	}
}

func TestICPTranslationOnly(t *testing.T) {
	target := cloudOnSphere(500, 3)
	source := rotateZ(target, 0, [3]float64{5, 5, -5})

	result, err := ICP(source, target, DefaultConfig())
	if err != nil {
		t.Fatalf("ICP: %v", err)
	}
	// A translation-only fit is a valid output: rotation near identity.
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(result.Rotation[i][j]-want) > 0.05 {
				t.Fatalf("Rotation[%d][%d] = %.4f", i, j, result.Rotation[i][j])
			}
		}
	}
}

func TestICPNeverReflects(t *testing.T) {
	target := cloudOnSphere(400, 21)
	// Mirror the target; a reflected fit could reach zero cost but is
	// forbidden, so the result must stay a proper rotation.
	source := make([][3]float64, len(target))
	for i, p := range target {
		source[i] = [3]float64{-p[0], p[1], p[2]}
	}

	result, err := ICP(source, target, DefaultConfig())
	if err != nil {
		t.Fatalf("ICP: %v", err)
	}
	if det := det3(result.Rotation); math.Abs(det-1) > 1e-6 {
		t.Fatalf("rotation determinant = %v, want +1", det)
	}
}

func TestICPIdentityInput(t *testing.T) {
	target := cloudOnSphere(300, 5)
	result, err := ICP(target, target, DefaultConfig())
	if err != nil {
		t.Fatalf("ICP: %v", err)
	}
	if result.Cost > 1e-9 {
		t.Fatalf("Cost = %v for identical clouds", result.Cost)
	}
}

func TestICPDegenerateInput(t *testing.T) {
	_, err := ICP(nil, cloudOnSphere(10, 1), DefaultConfig())
	if !errors.Is(err, ErrDegenerate) {
		t.Fatalf("err = %v, want ErrDegenerate", err)
	}
	_, err = ICP(cloudOnSphere(10, 1), [][3]float64{{0, 0, 0}}, DefaultConfig())
	if !errors.Is(err, ErrDegenerate) {
		t.Fatalf("err = %v, want ErrDegenerate", err)
	}
}

func TestICPHonorsIterationCap(t *testing.T) {
	target := cloudOnSphere(200, 9)
	source := rotateZ(target, 0.4, [3]float64{10, 0, 0})
	result, err := ICP(source, target, Config{MaxIterations: 3, Tolerance: 0})
	if err != nil {
		t.Fatalf("ICP: %v", err)
	}
	if result.Iterations > 3 {
		t.Fatalf("Iterations = %d, want at most 3", result.Iterations)
	}
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}
