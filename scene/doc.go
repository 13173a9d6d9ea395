// Package scene holds the mutable geometry graph and the immutable snapshots
// the tracer reads.
//
// Mutations (adding or removing meshes, changing a transform or a material)
// only touch pending state and raise the dirty flag. Stage copies the pending
// state and clears the flag; Build turns the copy into a world-space
// Snapshot with a BVH; Publish swaps the snapshot in atomically. A tracer
// holding an older *Snapshot keeps using it unchanged, so a commit never
// corrupts a trace that is already running.
package scene
