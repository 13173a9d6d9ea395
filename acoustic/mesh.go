package acoustic

import (
	"github.com/cwbudde/algo-acoustic/internal/handle"
	"github.com/cwbudde/algo-acoustic/scene"
	"github.com/cwbudde/algo-acoustic/types"
)

type meshState struct {
	material  handle.Handle
	transform types.Mat4
}

// Mesh is a handle to a piece of scene geometry.
type Mesh struct {
	ctx *Context
	h   handle.Handle
}

// IsZero reports whether m is the zero handle.
func (m Mesh) IsZero() bool {
	return m.ctx == nil || m.h.IsZero()
}

// CreateMesh adds geometry to the scene. indices holds three vertex
// indices per triangle; transform maps the vertices to world space. The
// mesh takes effect with the next commit.
func (c *Context) CreateMesh(vertices []types.Vec3, indices []int32, transform types.Mat4, material Material) (Mesh, error) {
	const op = "Context.CreateMesh"
	unlock, err := c.write(op)
	if err != nil {
		return Mesh{}, err
	}
	defer unlock()

	mat, err := c.attachableLocked(op, material)
	if err != nil {
		return Mesh{}, err
	}
	if !transform.IsFinite() {
		return Mesh{}, failf(op, StatusInvalidValue, "transform is not finite")
	}
	if err := scene.ValidateGeometry(vertices, indices); err != nil {
		return Mesh{}, wrap(op, err)
	}

	h, err := c.meshes.Insert(&meshState{material: material.h, transform: transform})
	if err != nil {
		return Mesh{}, wrap(op, err)
	}
	if err := c.graph.AddMesh(h.Key(), vertices, indices, transform, material.h.Key(), mat.mat); err != nil {
		_, _ = c.meshes.Remove(h)
		return Mesh{}, wrap(op, err)
	}
	mat.refs++
	c.metrics.meshes.Inc()
	return Mesh{ctx: c, h: h}, nil
}

// attachableLocked resolves a material that a mesh of c may reference.
func (c *Context) attachableLocked(op string, m Material) (*materialState, error) {
	if m.ctx != c {
		return nil, failf(op, StatusInvalidValue, "material does not belong to this context")
	}
	return m.lookupLocked(op)
}

func (m Mesh) lock(op string, write bool) (*meshState, func(), error) {
	if m.ctx == nil {
		return nil, nil, invalidHandle(op)
	}
	var (
		unlock func()
		err    error
	)
	if write {
		unlock, err = m.ctx.write(op)
	} else {
		unlock, err = m.ctx.read(op)
	}
	if err != nil {
		return nil, nil, err
	}
	st, err := m.ctx.meshes.Get(m.h)
	if err != nil {
		unlock()
		return nil, nil, wrap(op, err)
	}
	return st, unlock, nil
}

// Destroy removes the mesh from the scene and releases its material.
func (m Mesh) Destroy() error {
	const op = "Mesh.Destroy"
	st, unlock, err := m.lock(op, true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.ctx.graph.RemoveMesh(m.h.Key()); err != nil {
		return wrap(op, err)
	}
	if mat, err := m.ctx.materials.Get(st.material); err == nil {
		mat.refs--
	}
	_, err = m.ctx.meshes.Remove(m.h)
	m.ctx.metrics.meshes.Dec()
	return wrap(op, err)
}

// Material returns the material attached to the mesh.
func (m Mesh) Material() (Material, error) {
	st, unlock, err := m.lock("Mesh.Material", false)
	if err != nil {
		return Material{}, err
	}
	defer unlock()
	return Material{ctx: m.ctx, h: st.material}, nil
}

// SetMaterial attaches material, releasing the previous one.
func (m Mesh) SetMaterial(material Material) error {
	const op = "Mesh.SetMaterial"
	st, unlock, err := m.lock(op, true)
	if err != nil {
		return err
	}
	defer unlock()

	next, err := m.ctx.attachableLocked(op, material)
	if err != nil {
		return err
	}
	if material.h == st.material {
		return nil
	}
	if err := m.ctx.graph.SetMaterial(m.h.Key(), material.h.Key(), next.mat); err != nil {
		return wrap(op, err)
	}
	if prev, err := m.ctx.materials.Get(st.material); err == nil {
		prev.refs--
	}
	next.refs++
	st.material = material.h
	return nil
}

// Transform returns the row-major transform exactly as last set.
func (m Mesh) Transform() (types.Mat4, error) {
	st, unlock, err := m.lock("Mesh.Transform", false)
	if err != nil {
		return types.Mat4{}, err
	}
	defer unlock()
	return st.transform, nil
}

// SetTransform replaces the transform. It applies with the next commit.
func (m Mesh) SetTransform(t types.Mat4) error {
	const op = "Mesh.SetTransform"
	st, unlock, err := m.lock(op, true)
	if err != nil {
		return err
	}
	defer unlock()

	if !t.IsFinite() {
		return failf(op, StatusInvalidValue, "transform is not finite")
	}
	if err := m.ctx.graph.SetTransform(m.h.Key(), t); err != nil {
		return wrap(op, err)
	}
	st.transform = t
	return nil
}
