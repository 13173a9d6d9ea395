package tracer

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-acoustic/internal/log"
	"github.com/cwbudde/algo-acoustic/scene"
	"github.com/cwbudde/algo-acoustic/types"
)

// Surfaces are re-intersected only beyond this distance, in scene units,
// from the point a branch leaves them.
const surfaceEpsilon = 1e-4

// goldenAngle drives the Fibonacci sphere ray distribution.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// RayTracer is the default geometric-acoustics tracer: an analytic direct
// path plus deterministic specular ray tracing against a sphere receiver.
type RayTracer struct {
	cfg    Config
	logger log.Logger
}

// New returns a RayTracer.
func New(opts ...Option) *RayTracer {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &RayTracer{cfg: cfg, logger: log.New("tracer")}
}

// Config returns the tracer parameters.
func (rt *RayTracer) Config() Config {
	return rt.cfg
}

// Trace implements Tracer.
func (rt *RayTracer) Trace(in *Input) (*Output, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	out := &Output{
		SnapshotVersion: in.Snapshot.Version,
		Listener:        in.Listener,
		Results:         make([]Result, len(in.Sources)),
	}

	var g errgroup.Group
	g.SetLimit(rt.cfg.Workers)
	for i := range in.Sources {
		g.Go(func() error {
			out.Results[i] = rt.traceSource(in, in.Sources[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paths := 0
	for i := range out.Results {
		paths += len(out.Results[i].Indirect)
	}
	rt.logger.Debugf("traced %d sources on snapshot v%d: %d indirect paths", len(in.Sources), in.Snapshot.Version, paths)
	return out, nil
}

func (rt *RayTracer) traceSource(in *Input, src Source) Result {
	res := rt.direct(in, src)
	if !in.Snapshot.Empty() && src.Budget.Rays > 0 && src.Budget.MaxOrder > 0 {
		res.Indirect = rt.indirect(in, src)
	}
	return res
}

func (rt *RayTracer) direct(in *Input, src Source) Result {
	lis := in.Listener.Position
	seg := src.Position.Sub(lis)
	distUnits := seg.Len()
	dist := float64(distUnits / in.UnitLength)

	occlusion := float32(1)
	in.Snapshot.Crossings(src.Position, lis, func(h scene.Hit) bool {
		occlusion *= in.Snapshot.Triangles[h.Triangle].Material.Transmission
		return occlusion > 0
	})

	att := float32(1 / math.Max(dist, 1))
	gain := float64(att) * float64(occlusion)
	return Result{
		SourceID:            src.ID,
		Distance:            dist,
		DistanceAttenuation: att,
		Occlusion:           occlusion,
		Direct: Path{
			Delay:     dist / SpeedOfSound,
			Energy:    gain * gain,
			Direction: seg.Normalize(),
		},
	}
}

type branch struct {
	origin   types.Vec3
	dir      types.Vec3
	traveled float32
	weight   float64
	order    int
}

func (rt *RayTracer) indirect(in *Input, src Source) []Path {
	snap := in.Snapshot
	units := in.UnitLength
	lis := in.Listener.Position
	radius := rt.cfg.ReceiverRadius * units
	maxTravel := float32(in.MaxDelay*SpeedOfSound) * units

	rays := src.Budget.Rays
	r := float64(rt.cfg.ReceiverRadius)
	// Each ray carries 4*pi/rays of the source power; a receiver of cross
	// section pi*r^2 turns intercepted power into intensity.
	perRay := 4 / (float64(rays) * r * r)

	var paths []Path
	stack := make([]branch, 0, 2*src.Budget.MaxOrder+2)

	for i := 0; i < rays; i++ {
		stack = append(stack[:0], branch{origin: src.Position, dir: fibonacciDir(i, rays), weight: 1})

		for len(stack) > 0 {
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			remaining := maxTravel - b.traveled
			if remaining <= 0 {
				continue
			}
			tMin := float32(0)
			if b.order > 0 {
				tMin = surfaceEpsilon
			}
			hit, ok := snap.Intersect(scene.Ray{Origin: b.origin, Dir: b.dir}, tMin, remaining)
			segLen := remaining
			if ok {
				segLen = hit.Distance
			}

			// Order 0 segments are the direct path, handled analytically.
			if b.order > 0 {
				if p, ok := receive(b, segLen, lis, radius); ok {
					delay := float64(p/units) / SpeedOfSound
					if delay <= in.MaxDelay {
						paths = append(paths, Path{
							Delay:     delay,
							Energy:    b.weight * perRay,
							Direction: b.dir.Mul(-1),
							Order:     b.order,
						})
					}
				}
			}

			if !ok || b.order >= src.Budget.MaxOrder {
				continue
			}

			tri := &snap.Triangles[hit.Triangle]
			point := b.origin.Add(b.dir.Mul(hit.Distance))
			traveled := b.traveled + hit.Distance

			if tau := float64(tri.Material.Transmission); tau > 0 && b.weight*tau >= rt.cfg.EnergyFloor {
				stack = append(stack, branch{origin: point, dir: b.dir, traveled: traveled, weight: b.weight * tau, order: b.order + 1})
			}
			if rho := float64(tri.Material.Reflection); rho > 0 && b.weight*rho >= rt.cfg.EnergyFloor {
				stack = append(stack, branch{origin: point, dir: reflect(b.dir, tri.Normal), traveled: traveled, weight: b.weight * rho, order: b.order + 1})
			}
		}
	}
	return paths
}

// receive reports the total travelled distance at which the segment passes
// closest to the listener, if it passes within radius.
func receive(b branch, segLen float32, lis types.Vec3, radius float32) (float32, bool) {
	t := lis.Sub(b.origin).Dot(b.dir)
	if t < 0 {
		t = 0
	}
	if t > segLen {
		t = segLen
	}
	closest := b.origin.Add(b.dir.Mul(t))
	if lis.Sub(closest).Len() > radius {
		return 0, false
	}
	return b.traveled + t, true
}

func reflect(d, n types.Vec3) types.Vec3 {
	if d.Dot(n) > 0 {
		n = n.Mul(-1)
	}
	return d.Sub(n.Mul(2 * d.Dot(n))).Normalize()
}

// fibonacciDir returns the i-th of n directions spread evenly over the unit
// sphere.
func fibonacciDir(i, n int) types.Vec3 {
	y := 1 - 2*(float64(i)+0.5)/float64(n)
	r := math.Sqrt(math.Max(0, 1-y*y))
	phi := goldenAngle * float64(i)
	return types.XYZ(float32(math.Cos(phi)*r), float32(y), float32(math.Sin(phi)*r))
}
