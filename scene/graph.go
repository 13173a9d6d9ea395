package scene

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-acoustic/internal/log"
	"github.com/cwbudde/algo-acoustic/types"
)

// Material carries the acoustic coefficients of a surface.
type Material struct {
	Reflection   float32
	Transmission float32
}

// Validate checks that both coefficients are in [0,1]. Their sum is not
// constrained.
func (m Material) Validate() error {
	if !inUnit(m.Reflection) || !inUnit(m.Transmission) {
		return fmt.Errorf("%w: reflection %v, transmission %v", ErrInvalidMaterial, m.Reflection, m.Transmission)
	}
	return nil
}

func inUnit(v float32) bool {
	return v >= 0 && v <= 1
}

type meshState struct {
	vertices    []types.Vec3
	indices     []int32
	transform   types.Mat4
	materialKey uint64
	material    Material
}

var logger = log.New("scene")

// Graph is the pending scene. All methods are safe for concurrent use.
type Graph struct {
	mu      sync.Mutex
	meshes  map[uint64]*meshState
	dirty   bool
	version uint64

	committed atomic.Pointer[Snapshot]
}

// NewGraph returns an empty graph whose committed snapshot is the empty
// version 0 scene.
func NewGraph() *Graph {
	g := &Graph{meshes: make(map[uint64]*meshState)}
	g.committed.Store(emptySnapshot())
	return g
}

// ValidateGeometry checks vertices and triangle indices.
func ValidateGeometry(vertices []types.Vec3, indices []int32) error {
	if len(indices) == 0 || len(vertices) == 0 {
		return ErrEmptyGeometry
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: got %d", ErrIndexCount, len(indices))
	}
	for i, v := range vertices {
		if !v.IsFinite() {
			return fmt.Errorf("%w: vertex %d", ErrInvalidVertex, i)
		}
	}
	for i, idx := range indices {
		if idx < 0 || int(idx) >= len(vertices) {
			return fmt.Errorf("%w: index %d = %d", ErrIndexRange, i, idx)
		}
	}
	return nil
}

// AddMesh inserts a mesh under key. Geometry is copied.
func (g *Graph) AddMesh(key uint64, vertices []types.Vec3, indices []int32, transform types.Mat4, materialKey uint64, material Material) error {
	if err := ValidateGeometry(vertices, indices); err != nil {
		return err
	}
	if err := material.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.meshes[key]; ok {
		return ErrDuplicateMesh
	}
	g.meshes[key] = &meshState{
		vertices:    slices.Clone(vertices),
		indices:     slices.Clone(indices),
		transform:   transform,
		materialKey: materialKey,
		material:    material,
	}
	g.dirty = true
	return nil
}

// RemoveMesh deletes the mesh under key.
func (g *Graph) RemoveMesh(key uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.meshes[key]; !ok {
		return ErrUnknownMesh
	}
	delete(g.meshes, key)
	g.dirty = true
	return nil
}

// SetTransform replaces the object-to-world transform of a mesh.
func (g *Graph) SetTransform(key uint64, transform types.Mat4) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.meshes[key]
	if !ok {
		return ErrUnknownMesh
	}
	m.transform = transform
	g.dirty = true
	return nil
}

// SetMaterial rebinds a mesh to another material.
func (g *Graph) SetMaterial(key, materialKey uint64, material Material) error {
	if err := material.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.meshes[key]
	if !ok {
		return ErrUnknownMesh
	}
	m.materialKey = materialKey
	m.material = material
	g.dirty = true
	return nil
}

// UpdateMaterial changes the coefficients of every mesh bound to
// materialKey and reports how many meshes were affected. The graph only
// becomes dirty when at least one mesh uses the material.
func (g *Graph) UpdateMaterial(materialKey uint64, material Material) (int, error) {
	if err := material.Validate(); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, m := range g.meshes {
		if m.materialKey == materialKey {
			m.material = material
			n++
		}
	}
	if n > 0 {
		g.dirty = true
	}
	return n, nil
}

// Dirty reports whether pending state differs from the last staged commit.
func (g *Graph) Dirty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dirty
}

// MeshCount returns the number of pending meshes.
func (g *Graph) MeshCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.meshes)
}

// Pending is a frozen copy of the graph taken by Stage.
type Pending struct {
	version uint64
	meshes  []pendingMesh
}

type pendingMesh struct {
	key uint64
	meshState
}

// Version returns the snapshot version Build will produce.
func (p *Pending) Version() uint64 {
	return p.version
}

// Stage freezes the pending state and clears the dirty flag. It returns
// false when nothing changed since the last stage, making repeated commits
// no-ops.
func (g *Graph) Stage() (*Pending, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.dirty {
		return nil, false
	}

	keys := make([]uint64, 0, len(g.meshes))
	for k := range g.meshes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	g.version++
	p := &Pending{version: g.version, meshes: make([]pendingMesh, 0, len(keys))}
	for _, k := range keys {
		// Geometry slices are never mutated after AddMesh, so sharing them is safe.
		p.meshes = append(p.meshes, pendingMesh{key: k, meshState: *g.meshes[k]})
	}
	g.dirty = false
	return p, true
}

// Build transforms the pending meshes to world space and builds the BVH.
func (p *Pending) Build() *Snapshot {
	start := time.Now()

	s := &Snapshot{Version: p.version, Meshes: make([]MeshRecord, 0, len(p.meshes))}
	for _, m := range p.meshes {
		rec := MeshRecord{
			Key:           m.key,
			MaterialKey:   m.materialKey,
			Material:      m.material,
			Indices:       m.indices,
			World:         make([]types.Vec3, len(m.vertices)),
			FirstTriangle: len(s.Triangles),
		}
		for i, v := range m.vertices {
			rec.World[i] = m.transform.TransformPoint(v)
		}
		for i := 0; i+2 < len(m.indices); i += 3 {
			tri, ok := newTriangle(rec.World[m.indices[i]], rec.World[m.indices[i+1]], rec.World[m.indices[i+2]])
			if !ok {
				continue
			}
			tri.Mesh = len(s.Meshes)
			tri.Material = m.material
			s.Triangles = append(s.Triangles, tri)
		}
		rec.TriangleCount = len(s.Triangles) - rec.FirstTriangle
		s.Meshes = append(s.Meshes, rec)
	}

	s.bvh = buildBVH(s.Triangles)
	logger.Debugf("built snapshot v%d in %s: %d triangles, %d bvh nodes, depth %d",
		s.Version, time.Since(start), len(s.Triangles), len(s.bvh.nodes), s.bvh.depth)
	return s
}

// Publish makes s the committed snapshot unless a newer one is already
// published. It reports whether s was installed.
func (g *Graph) Publish(s *Snapshot) bool {
	for {
		cur := g.committed.Load()
		if cur != nil && cur.Version >= s.Version {
			return false
		}
		if g.committed.CompareAndSwap(cur, s) {
			logger.Debugf("published snapshot v%d (%d meshes, %d triangles)", s.Version, len(s.Meshes), len(s.Triangles))
			return true
		}
	}
}

// Committed returns the latest published snapshot. It is never nil.
func (g *Graph) Committed() *Snapshot {
	return g.committed.Load()
}
