package scene

import (
	"math"

	"github.com/cwbudde/algo-acoustic/types"
)

const intersectEpsilon = 1e-7

// Triangle is a world-space surface with its acoustic coefficients.
type Triangle struct {
	V0, E1, E2 types.Vec3
	Normal     types.Vec3
	Material   Material
	// Mesh indexes Snapshot.Meshes.
	Mesh int
}

func newTriangle(a, b, c types.Vec3) (Triangle, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	n := e1.Cross(e2)
	if n.Len() < 1e-10 {
		return Triangle{}, false
	}
	return Triangle{V0: a, E1: e1, E2: e2, Normal: n.Normalize()}, true
}

// Vertices returns the three corners.
func (t *Triangle) Vertices() [3]types.Vec3 {
	return [3]types.Vec3{t.V0, t.V0.Add(t.E1), t.V0.Add(t.E2)}
}

func (t *Triangle) bbox() [2]types.Vec3 {
	v := t.Vertices()
	return [2]types.Vec3{
		types.MinVec3(types.MinVec3(v[0], v[1]), v[2]),
		types.MaxVec3(types.MaxVec3(v[0], v[1]), v[2]),
	}
}

// intersect is a two-sided Moller-Trumbore test.
func (t *Triangle) intersect(r *Ray, tMin, tMax float32) (float32, bool) {
	p := r.Dir.Cross(t.E2)
	det := t.E1.Dot(p)
	if det > -intersectEpsilon && det < intersectEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(t.V0)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(t.E1)
	v := r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	d := t.E2.Dot(q) * inv
	if d <= tMin || d >= tMax {
		return 0, false
	}
	return d, true
}

// Ray is a half line with a unit direction.
type Ray struct {
	Origin types.Vec3
	Dir    types.Vec3
}

// At returns the point at distance d along the ray.
func (r Ray) At(d float32) types.Vec3 {
	return r.Origin.Add(r.Dir.Mul(d))
}

// Hit describes the closest intersection found by Snapshot.Intersect.
type Hit struct {
	Distance float32
	Triangle int
}

// MeshRecord describes one mesh as it was committed.
type MeshRecord struct {
	Key           uint64
	MaterialKey   uint64
	Material      Material
	World         []types.Vec3
	Indices       []int32
	FirstTriangle int
	TriangleCount int
}

// Snapshot is an immutable, versioned view of the committed scene.
type Snapshot struct {
	Version   uint64
	Triangles []Triangle
	Meshes    []MeshRecord

	bvh *bvh
}

func emptySnapshot() *Snapshot {
	return &Snapshot{bvh: buildBVH(nil)}
}

// Empty reports whether the snapshot has no surfaces.
func (s *Snapshot) Empty() bool {
	return len(s.Triangles) == 0
}

// Bounds returns the world-space bounding box of all triangles. The box of
// an empty snapshot is inverted.
func (s *Snapshot) Bounds() [2]types.Vec3 {
	if s.bvh == nil || len(s.bvh.nodes) == 0 {
		inf := float32(math.Inf(1))
		return [2]types.Vec3{{inf, inf, inf}, {-inf, -inf, -inf}}
	}
	root := s.bvh.nodes[0]
	return [2]types.Vec3{root.min, root.max}
}

// Intersect returns the closest triangle hit with distance in (tMin, tMax).
func (s *Snapshot) Intersect(r Ray, tMin, tMax float32) (Hit, bool) {
	if s.bvh == nil {
		return Hit{}, false
	}
	return s.bvh.intersect(s.Triangles, &r, tMin, tMax)
}

// Crossings calls fn for every surface crossed by the segment from a to b,
// in order of distance from a, until fn returns false.
func (s *Snapshot) Crossings(a, b types.Vec3, fn func(Hit) bool) {
	seg := b.Sub(a)
	length := seg.Len()
	if length < intersectEpsilon || s.Empty() {
		return
	}
	r := Ray{Origin: a, Dir: seg.Mul(1 / length)}
	tMin := float32(0)
	// Coincident surfaces are reported once each; the bound keeps a
	// pathological mesh from looping.
	for i := 0; i < len(s.Triangles)+1; i++ {
		hit, ok := s.Intersect(r, tMin, length)
		if !ok || !fn(hit) {
			return
		}
		tMin = hit.Distance + 1e-4
	}
}
