package tree

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Kernel computes the distance between two vectors of equal length.
//
// Implementations must be metrics. The pruning bound used by Nearest and
// Range relies on the triangle inequality; a kernel that violates it makes
// the tree silently return wrong neighbors.
type Kernel interface {
	Compute(a, b []float64) float64
}

// KernelName enumerates the supported distance kernels.
type KernelName string

const (
	KernelEuclidean KernelName = "euclidean"
	KernelManhattan KernelName = "manhattan"
	KernelChebyshev KernelName = "chebyshev"
	KernelMinkowski KernelName = "minkowski"
	KernelGower     KernelName = "gower"
)

// DefaultMinkowskiP is used when a minkowski kernel is requested by name
// without an explicit power.
const DefaultMinkowskiP = 3.0

// Kernel resolves the named kernel, or nil when the name is unknown.
func (n KernelName) Kernel() Kernel {
	switch n {
	case KernelEuclidean:
		return Euclidean{}
	case KernelManhattan:
		return Manhattan{}
	case KernelChebyshev:
		return Chebyshev{}
	case KernelMinkowski:
		return Minkowski{P: DefaultMinkowskiP}
	case KernelGower:
		return Gower{Range: 1}
	default:
		return nil
	}
}

// ParseKernel resolves a kernel from its configuration name. p is the
// minkowski power, where zero selects DefaultMinkowskiP, or the gower range
// of continuous columns, where zero selects 1. Other kernels ignore it.
func ParseKernel(name string, p float64) (Kernel, error) {
	switch KernelName(strings.ToLower(strings.TrimSpace(name))) {
	case "", "l2", KernelEuclidean:
		return Euclidean{}, nil
	case "l1", "cityblock", KernelManhattan:
		return Manhattan{}, nil
	case "linf", KernelChebyshev:
		return Chebyshev{}, nil
	case KernelMinkowski:
		if p == 0 {
			p = DefaultMinkowskiP
		}
		k := Minkowski{P: p}
		if err := validateKernel(k); err != nil {
			return nil, err
		}
		return k, nil
	case KernelGower:
		if p == 0 {
			p = 1
		}
		k := Gower{Range: p}
		if err := validateKernel(k); err != nil {
			return nil, err
		}
		return k, nil
	}
	return nil, fmt.Errorf("balltree: unknown kernel %q: %w", name, ErrInvalidConfiguration)
}

// NameOf returns the configuration name of a built-in kernel and, for
// minkowski, its power.
func NameOf(k Kernel) (KernelName, float64, bool) {
	switch v := k.(type) {
	case Euclidean:
		return KernelEuclidean, 0, true
	case Manhattan:
		return KernelManhattan, 0, true
	case Chebyshev:
		return KernelChebyshev, 0, true
	case Minkowski:
		return KernelMinkowski, v.P, true
	case Gower:
		return KernelGower, v.Range, true
	}
	return "", 0, false
}

func validateKernel(k Kernel) error {
	if k == nil {
		return fmt.Errorf("balltree: kernel is nil: %w", ErrInvalidConfiguration)
	}
	switch v := k.(type) {
	case Minkowski:
		if v.P < 1 || math.IsNaN(v.P) {
			return fmt.Errorf("balltree: minkowski power must be >= 1, %v given: %w", v.P, ErrInvalidConfiguration)
		}
	case Gower:
		if !(v.Range > 0) || math.IsInf(v.Range, 1) {
			return fmt.Errorf("balltree: gower range must be greater than 0, %v given: %w", v.Range, ErrInvalidConfiguration)
		}
	}
	return nil
}

// Euclidean is the straight line distance between two points.
type Euclidean struct{}

func (Euclidean) Compute(a, b []float64) float64 { return floats.Distance(a, b, 2) }

// Manhattan is the L1 (city block) distance.
type Manhattan struct{}

func (Manhattan) Compute(a, b []float64) float64 { return floats.Distance(a, b, 1) }

// Chebyshev is the L-infinity distance, the largest coordinate difference.
type Chebyshev struct{}

func (Chebyshev) Compute(a, b []float64) float64 { return floats.Distance(a, b, math.Inf(1)) }

// Minkowski generalizes Manhattan (P=1) and Euclidean (P=2). P must be >= 1
// for the result to be a metric.
type Minkowski struct {
	P float64
}

func (m Minkowski) Compute(a, b []float64) float64 { return floats.Distance(a, b, m.P) }

// Gower averages per column distances over mixed data: the absolute
// difference scaled by Range on continuous columns and 0 or 1 on
// categorical ones, by whether the categories match. Types lists the type of
// each column; columns past its end are continuous.
type Gower struct {
	Range float64
	Types []ColumnType
}

func (g Gower) Compute(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		if i < len(g.Types) && g.Types[i] == Categorical {
			if a[i] != b[i] {
				sum++
			}
			continue
		}
		sum += math.Abs(a[i]-b[i]) / g.Range
	}
	return sum / float64(len(a))
}
