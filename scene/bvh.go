package scene

import (
	"math"

	"github.com/cwbudde/algo-acoustic/types"
)

const (
	bvhBins      = 12
	bvhLeafItems = 4
	bvhMaxDepth  = 48

	// Bins are not evaluated along an axis whose centroid extent is
	// below this threshold.
	minSideLength float32 = 1e-5
)

type bvhNode struct {
	min, max types.Vec3
	// Interior nodes have left/right >= 0; leaves reference order[first:first+count].
	left, right int32
	first       int32
	count       int32
}

type bvh struct {
	nodes []bvhNode
	order []int32
	depth int
}

type bvhBuilder struct {
	tris      []Triangle
	boxes     [][2]types.Vec3
	centroids []types.Vec3
	out       *bvh
}

func emptyBox() [2]types.Vec3 {
	m := float32(math.MaxFloat32)
	return [2]types.Vec3{{m, m, m}, {-m, -m, -m}}
}

func growBox(b [2]types.Vec3, o [2]types.Vec3) [2]types.Vec3 {
	return [2]types.Vec3{types.MinVec3(b[0], o[0]), types.MaxVec3(b[1], o[1])}
}

func surfaceArea(b [2]types.Vec3) float32 {
	d := b[1].Sub(b[0])
	if d[0] < 0 || d[1] < 0 || d[2] < 0 {
		return 0
	}
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// buildBVH partitions triangles with a binned surface area heuristic. Split
// candidates are evaluated in a fixed order so the same input always yields
// the same tree.
func buildBVH(tris []Triangle) *bvh {
	b := &bvhBuilder{
		tris:      tris,
		boxes:     make([][2]types.Vec3, len(tris)),
		centroids: make([]types.Vec3, len(tris)),
		out:       &bvh{order: make([]int32, len(tris))},
	}
	for i := range tris {
		b.boxes[i] = tris[i].bbox()
		b.centroids[i] = b.boxes[i][0].Add(b.boxes[i][1]).Mul(0.5)
		b.out.order[i] = int32(i)
	}
	if len(tris) > 0 {
		b.partition(0, len(tris), 0)
	}
	return b.out
}

func (b *bvhBuilder) partition(start, end, depth int) int32 {
	if depth > b.out.depth {
		b.out.depth = depth
	}

	box := emptyBox()
	cbox := emptyBox()
	for _, idx := range b.out.order[start:end] {
		box = growBox(box, b.boxes[idx])
		c := b.centroids[idx]
		cbox = growBox(cbox, [2]types.Vec3{c, c})
	}

	nodeIdx := int32(len(b.out.nodes))
	b.out.nodes = append(b.out.nodes, bvhNode{min: box[0], max: box[1], left: -1, right: -1})

	count := end - start
	if count <= bvhLeafItems || depth >= bvhMaxDepth {
		b.makeLeaf(nodeIdx, start, count)
		return nodeIdx
	}

	axis, split, ok := b.bestSplit(start, end, cbox, surfaceArea(box))
	if !ok {
		b.makeLeaf(nodeIdx, start, count)
		return nodeIdx
	}

	// In-place partition around the chosen bin boundary.
	mid := start
	for i := start; i < end; i++ {
		idx := b.out.order[i]
		if b.binOf(b.centroids[idx], cbox, axis) < split {
			b.out.order[i], b.out.order[mid] = b.out.order[mid], b.out.order[i]
			mid++
		}
	}
	if mid == start || mid == end {
		b.makeLeaf(nodeIdx, start, count)
		return nodeIdx
	}

	left := b.partition(start, mid, depth+1)
	right := b.partition(mid, end, depth+1)
	b.out.nodes[nodeIdx].left = left
	b.out.nodes[nodeIdx].right = right
	return nodeIdx
}

func (b *bvhBuilder) makeLeaf(nodeIdx int32, start, count int) {
	n := &b.out.nodes[nodeIdx]
	n.first = int32(start)
	n.count = int32(count)
}

func (b *bvhBuilder) binOf(c types.Vec3, cbox [2]types.Vec3, axis int) int {
	extent := cbox[1][axis] - cbox[0][axis]
	bin := int(float32(bvhBins) * (c[axis] - cbox[0][axis]) / extent)
	if bin >= bvhBins {
		bin = bvhBins - 1
	}
	if bin < 0 {
		bin = 0
	}
	return bin
}

// bestSplit returns the axis and the first bin of the right child for the
// cheapest split, or false when no split beats a leaf.
func (b *bvhBuilder) bestSplit(start, end int, cbox [2]types.Vec3, parentArea float32) (int, int, bool) {
	if parentArea <= 0 {
		return 0, 0, false
	}

	bestCost := float32(end - start)
	bestAxis, bestSplit := -1, 0

	for axis := 0; axis < 3; axis++ {
		if cbox[1][axis]-cbox[0][axis] < minSideLength {
			continue
		}

		var counts [bvhBins]int
		var boxes [bvhBins][2]types.Vec3
		for i := range boxes {
			boxes[i] = emptyBox()
		}
		for _, idx := range b.out.order[start:end] {
			bin := b.binOf(b.centroids[idx], cbox, axis)
			counts[bin]++
			boxes[bin] = growBox(boxes[bin], b.boxes[idx])
		}

		// Sweep from the right to collect suffix areas.
		var rightArea [bvhBins]float32
		var rightCount [bvhBins]int
		acc, n := emptyBox(), 0
		for i := bvhBins - 1; i > 0; i-- {
			acc = growBox(acc, boxes[i])
			n += counts[i]
			rightArea[i] = surfaceArea(acc)
			rightCount[i] = n
		}

		acc, n = emptyBox(), 0
		for split := 1; split < bvhBins; split++ {
			acc = growBox(acc, boxes[split-1])
			n += counts[split-1]
			if n == 0 || rightCount[split] == 0 {
				continue
			}
			cost := 0.125 + (surfaceArea(acc)*float32(n)+rightArea[split]*float32(rightCount[split]))/parentArea
			if cost < bestCost {
				bestCost = cost
				bestAxis = axis
				bestSplit = split
			}
		}
	}

	return bestAxis, bestSplit, bestAxis >= 0
}

func (n *bvhNode) hitBox(r *Ray, tMin, tMax float32) bool {
	for a := 0; a < 3; a++ {
		o, d := r.Origin[a], r.Dir[a]
		if d == 0 {
			if o < n.min[a] || o > n.max[a] {
				return false
			}
			continue
		}
		inv := 1 / d
		t0 := (n.min[a] - o) * inv
		t1 := (n.max[a] - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMax < tMin {
			return false
		}
	}
	return true
}

func (b *bvh) intersect(tris []Triangle, r *Ray, tMin, tMax float32) (Hit, bool) {
	if len(b.nodes) == 0 {
		return Hit{}, false
	}

	var stack [2*bvhMaxDepth + 2]int32
	sp := 0
	stack[sp] = 0
	sp++

	best := Hit{Triangle: -1}
	closest := tMax
	for sp > 0 {
		sp--
		n := &b.nodes[stack[sp]]
		if !n.hitBox(r, tMin, closest) {
			continue
		}
		if n.left < 0 {
			for _, idx := range b.order[n.first : n.first+n.count] {
				if d, ok := tris[idx].intersect(r, tMin, closest); ok {
					closest = d
					best = Hit{Distance: d, Triangle: int(idx)}
				}
			}
			continue
		}
		stack[sp] = n.right
		sp++
		stack[sp] = n.left
		sp++
	}
	return best, best.Triangle >= 0
}
