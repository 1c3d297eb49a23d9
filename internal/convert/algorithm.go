package convert

import (
	"fmt"
	"strings"

	"golang.org/x/image/draw"
)

// Algorithm selects the resampling method used when the output size differs
// from the input size. It is fixed for the lifetime of a Context.
type Algorithm int

const (
	Bicubic Algorithm = iota
	Bilinear
	ApproxBilinear
	Nearest
)

var algorithmNames = map[Algorithm]string{
	Bicubic:        "bicubic",
	Bilinear:       "bilinear",
	ApproxBilinear: "approx-bilinear",
	Nearest:        "nearest",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// ParseAlgorithm maps a scaler name to an Algorithm
func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for a, n := range algorithmNames {
		if n == name {
			return a, nil
		}
	}
	return Bicubic, fmt.Errorf("unknown scaling algorithm: %q (expected bicubic, bilinear, approx-bilinear or nearest)", s)
}

func (a Algorithm) interpolator() draw.Interpolator {
	switch a {
	case Bilinear:
		return draw.BiLinear
	case ApproxBilinear:
		return draw.ApproxBiLinear
	case Nearest:
		return draw.NearestNeighbor
	default:
		return draw.CatmullRom
	}
}
