package acoustic

import (
	"github.com/cwbudde/algo-acoustic/internal/handle"
	"github.com/cwbudde/algo-acoustic/scene"
)

type materialState struct {
	mat  scene.Material
	refs int // meshes using the material
}

// Material is a handle to an acoustic material of a context.
type Material struct {
	ctx *Context
	h   handle.Handle
}

// IsZero reports whether m is the zero handle.
func (m Material) IsZero() bool {
	return m.ctx == nil || m.h.IsZero()
}

// CreateMaterial creates a material with the default coefficients.
func (c *Context) CreateMaterial() (Material, error) {
	return c.createMaterial("Context.CreateMaterial", scene.Material{
		Reflection:   DefaultReflection,
		Transmission: DefaultTransmission,
	})
}

// CreatePredefinedMaterial creates a material initialized from p. The
// result is independent of other materials created from p.
func (c *Context) CreatePredefinedMaterial(p PredefinedMaterial) (Material, error) {
	const op = "Context.CreatePredefinedMaterial"
	if !p.valid() {
		if err := requireInitialized(op); err != nil {
			return Material{}, err
		}
		return Material{}, failf(op, StatusInvalidValue, "unknown predefined material %d", int(p))
	}
	return c.createMaterial(op, predefined[p].mat)
}

func (c *Context) createMaterial(op string, mat scene.Material) (Material, error) {
	unlock, err := c.write(op)
	if err != nil {
		return Material{}, err
	}
	defer unlock()

	h, err := c.materials.Insert(&materialState{mat: mat})
	if err != nil {
		return Material{}, wrap(op, err)
	}
	return Material{ctx: c, h: h}, nil
}

// lookupLocked resolves m. Callers hold m.ctx.mu.
func (m Material) lookupLocked(op string) (*materialState, error) {
	st, err := m.ctx.materials.Get(m.h)
	if err != nil {
		return nil, wrap(op, err)
	}
	return st, nil
}

func (m Material) read(op string) (*materialState, func(), error) {
	if m.ctx == nil {
		return nil, nil, invalidHandle(op)
	}
	unlock, err := m.ctx.read(op)
	if err != nil {
		return nil, nil, err
	}
	st, err := m.lookupLocked(op)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return st, unlock, nil
}

func (m Material) write(op string) (*materialState, func(), error) {
	if m.ctx == nil {
		return nil, nil, invalidHandle(op)
	}
	unlock, err := m.ctx.write(op)
	if err != nil {
		return nil, nil, err
	}
	st, err := m.lookupLocked(op)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return st, unlock, nil
}

func invalidHandle(op string) error {
	if err := requireInitialized(op); err != nil {
		return err
	}
	return fail(op, StatusInvalidValue, handle.ErrInvalid)
}

// Destroy frees the material. It fails with NotReady while a mesh uses it.
func (m Material) Destroy() error {
	const op = "Material.Destroy"
	st, unlock, err := m.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if st.refs > 0 {
		return failf(op, StatusNotReady, "material attached to %d meshes", st.refs)
	}
	_, err = m.ctx.materials.Remove(m.h)
	return wrap(op, err)
}

// Reflection returns the reflection coefficient.
func (m Material) Reflection() (float32, error) {
	st, unlock, err := m.read("Material.Reflection")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return st.mat.Reflection, nil
}

// SetReflection sets the reflection coefficient, in [0,1].
func (m Material) SetReflection(v float32) error {
	return m.update("Material.SetReflection", v, func(mat *scene.Material) {
		mat.Reflection = v
	})
}

// Transmission returns the transmission coefficient.
func (m Material) Transmission() (float32, error) {
	st, unlock, err := m.read("Material.Transmission")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return st.mat.Transmission, nil
}

// SetTransmission sets the transmission coefficient, in [0,1].
func (m Material) SetTransmission(v float32) error {
	return m.update("Material.SetTransmission", v, func(mat *scene.Material) {
		mat.Transmission = v
	})
}

// update applies set and marks every mesh using the material dirty. The
// sum of the coefficients is not checked.
func (m Material) update(op string, v float32, set func(*scene.Material)) error {
	st, unlock, err := m.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if !finite(v) || v < 0 || v > 1 {
		return failf(op, StatusInvalidValue, "coefficient %v outside [0, 1]", v)
	}
	next := st.mat
	set(&next)
	if next == st.mat {
		return nil
	}
	if _, err := m.ctx.graph.UpdateMaterial(m.h.Key(), next); err != nil {
		return wrap(op, err)
	}
	st.mat = next
	return nil
}
