package acoustic

import (
	"errors"
	"sync"
	"testing"

	"github.com/cwbudde/algo-acoustic/tracer"
	"github.com/cwbudde/algo-acoustic/types"
)

// newTestContext creates the default context with short filters. It is
// destroyed, down to the last reference, when the test ends.
func newTestContext(t *testing.T, opts ...Option) *Context {
	t.Helper()

	if err := Initialize(0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	base := []Option{WithReverbLength(0.1)}
	c, err := Create("", append(base, opts...)...)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { destroyAll(c) })
	return c
}

func destroyAll(c *Context) {
	for c.Destroy() == nil {
	}
}

func requireStatus(t *testing.T, err error, want Status) {
	t.Helper()
	if got := StatusOf(err); got != want {
		t.Fatalf("status = %s (%v), want %s", got, err, want)
	}
}

func boxGeometry(h float32) ([]types.Vec3, []int32) {
	v := []types.Vec3{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	}
	idx := []int32{
		0, 1, 2, 0, 2, 3,
		4, 6, 5, 4, 7, 6,
		0, 4, 5, 0, 5, 1,
		3, 2, 6, 3, 6, 7,
		0, 3, 7, 0, 7, 4,
		1, 5, 6, 1, 6, 2,
	}
	return v, idx
}

// addBox encloses the origin in a box of the given material.
func addBox(t *testing.T, c *Context, half float32, p PredefinedMaterial) (Mesh, Material) {
	t.Helper()

	mat, err := c.CreatePredefinedMaterial(p)
	if err != nil {
		t.Fatal(err)
	}
	v, idx := boxGeometry(half)
	mesh, err := c.CreateMesh(v, idx, types.Ident4(), mat)
	if err != nil {
		t.Fatal(err)
	}
	return mesh, mat
}

func addSource(t *testing.T, c *Context, at types.Vec3) Source {
	t.Helper()

	s, err := c.CreateSource(DefaultEffectPreset)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetLocation(at); err != nil {
		t.Fatal(err)
	}
	return s
}

// gatedTracer holds every trace until Release. Tests register Release as a
// cleanup after creating the context, so it runs before the context drains
// its queue.
type gatedTracer struct {
	inner   tracer.Tracer
	release chan struct{}
	once    sync.Once
}

func newGatedTracer() *gatedTracer {
	return &gatedTracer{inner: tracer.New(), release: make(chan struct{})}
}

func (g *gatedTracer) Trace(in *tracer.Input) (*tracer.Output, error) {
	<-g.release
	return g.inner.Trace(in)
}

func (g *gatedTracer) Release() {
	g.once.Do(func() { close(g.release) })
}

var errTraceFailed = errors.New("device lost")

type failingTracer struct{}

func (failingTracer) Trace(*tracer.Input) (*tracer.Output, error) {
	return nil, errTraceFailed
}
