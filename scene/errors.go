package scene

import "errors"

var (
	ErrUnknownMesh     = errors.New("scene: unknown mesh")
	ErrDuplicateMesh   = errors.New("scene: mesh already exists")
	ErrEmptyGeometry   = errors.New("scene: mesh has no triangles")
	ErrIndexCount      = errors.New("scene: index count must be a multiple of 3")
	ErrIndexRange      = errors.New("scene: vertex index out of range")
	ErrInvalidVertex   = errors.New("scene: vertex is not finite")
	ErrInvalidMaterial = errors.New("scene: material coefficient out of [0,1]")
)
