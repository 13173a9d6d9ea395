package acoustic

import (
	"fmt"

	"github.com/cwbudde/algo-acoustic/scene"
	"github.com/cwbudde/algo-acoustic/tracer"
)

// EffectPreset selects the tracing effort spent per source.
type EffectPreset int

const (
	EffectLow EffectPreset = iota
	EffectMedium
	EffectHigh
	EffectPro

	numEffectPresets
)

// DefaultEffectPreset is used by sources unless set otherwise.
const DefaultEffectPreset = EffectMedium

var effectBudgets = [numEffectPresets]tracer.Budget{
	EffectLow:    {Rays: 256, MaxOrder: 2},
	EffectMedium: {Rays: 512, MaxOrder: 3},
	EffectHigh:   {Rays: 1024, MaxOrder: 4},
	EffectPro:    {Rays: 2048, MaxOrder: 6},
}

var effectNames = [numEffectPresets]string{"low", "medium", "high", "pro"}

func (p EffectPreset) valid() bool {
	return p >= 0 && p < numEffectPresets
}

func (p EffectPreset) String() string {
	if !p.valid() {
		return fmt.Sprintf("effect(%d)", int(p))
	}
	return effectNames[p]
}

// ComputePreset scales the work of every trace of a context.
type ComputePreset int

const (
	ComputeHigh ComputePreset = iota
	ComputeLow
	ComputePro

	numComputePresets
)

var computeNames = [numComputePresets]string{"high", "low", "pro"}

func (p ComputePreset) valid() bool {
	return p >= 0 && p < numComputePresets
}

func (p ComputePreset) String() string {
	if !p.valid() {
		return fmt.Sprintf("compute(%d)", int(p))
	}
	return computeNames[p]
}

// Budget returns the ray budget of effect under compute.
func Budget(effect EffectPreset, compute ComputePreset) tracer.Budget {
	b := effectBudgets[EffectMedium]
	if effect.valid() {
		b = effectBudgets[effect]
	}
	switch compute {
	case ComputeLow:
		b.Rays /= 2
	case ComputePro:
		b.Rays *= 2
	}
	if b.Rays < 1 {
		b.Rays = 1
	}
	return b
}

// PredefinedMaterial names a built-in material.
type PredefinedMaterial int

const (
	MaterialConcrete PredefinedMaterial = iota
	MaterialMetal
	MaterialPlastic
	MaterialCarpet
	MaterialGlass
	MaterialWood
	MaterialCloth
	// MaterialAbsorber reflects and transmits nothing.
	MaterialAbsorber

	numPredefinedMaterials
)

var predefined = [numPredefinedMaterials]struct {
	name string
	mat  scene.Material
}{
	MaterialConcrete: {"concrete", scene.Material{Reflection: 0.98, Transmission: 0.01}},
	MaterialMetal:    {"metal", scene.Material{Reflection: 0.95, Transmission: 0.02}},
	MaterialPlastic:  {"plastic", scene.Material{Reflection: 0.8, Transmission: 0.1}},
	MaterialCarpet:   {"carpet", scene.Material{Reflection: 0.4, Transmission: 0.05}},
	MaterialGlass:    {"glass", scene.Material{Reflection: 0.9, Transmission: 0.05}},
	MaterialWood:     {"wood", scene.Material{Reflection: 0.85, Transmission: 0.05}},
	MaterialCloth:    {"cloth", scene.Material{Reflection: 0.3, Transmission: 0.4}},
	MaterialAbsorber: {"absorber", scene.Material{}},
}

func (m PredefinedMaterial) valid() bool {
	return m >= 0 && m < numPredefinedMaterials
}

func (m PredefinedMaterial) String() string {
	if !m.valid() {
		return fmt.Sprintf("material(%d)", int(m))
	}
	return predefined[m].name
}

// PredefinedMaterials lists every built-in material in declaration order.
func PredefinedMaterials() []PredefinedMaterial {
	out := make([]PredefinedMaterial, numPredefinedMaterials)
	for i := range out {
		out[i] = PredefinedMaterial(i)
	}
	return out
}

// Coefficients returns the reflection and transmission of m.
func (m PredefinedMaterial) Coefficients() (reflection, transmission float32, err error) {
	if !m.valid() {
		return 0, 0, failf("PredefinedMaterial.Coefficients", StatusInvalidValue, "unknown material %d", int(m))
	}
	mat := predefined[m].mat
	return mat.Reflection, mat.Transmission, nil
}
