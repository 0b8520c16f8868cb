package ik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/pose"
)

// LowPassFilter smooths positions with a per-axis exponential moving
// average. Zero components are treated as missing and leave the axis as is.
type LowPassFilter struct {
	alpha    float64
	position mgl64.Vec3
}

func NewLowPassFilter(alpha float64) *LowPassFilter {
	return &LowPassFilter{alpha: alpha}
}

// Apply feeds t into the filter and returns t with the filtered position.
func (f *LowPassFilter) Apply(t pose.Transform) pose.Transform {
	for i := 0; i < 3; i++ {
		raw := t.Position[i]
		if raw == 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
			continue
		}
		f.position[i] = raw*f.alpha + f.position[i]*(1-f.alpha)
	}
	t.Position = f.position
	return t
}

func (f *LowPassFilter) Reset() {
	f.position = mgl64.Vec3{}
}
