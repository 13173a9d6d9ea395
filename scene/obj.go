package scene

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func materialName(key uint64) string {
	return fmt.Sprintf("material_%x", key)
}

// WriteOBJ writes the snapshot's world-space geometry as Wavefront OBJ.
// mtlLib names the companion material library; it may be empty.
func WriteOBJ(w io.Writer, s *Snapshot, mtlLib string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# acoustic scene snapshot v%d\n", s.Version)
	if mtlLib != "" {
		fmt.Fprintf(bw, "mtllib %s\n", mtlLib)
	}

	offset := 1
	for i, m := range s.Meshes {
		fmt.Fprintf(bw, "o mesh_%d\n", i)
		fmt.Fprintf(bw, "usemtl %s\n", materialName(m.MaterialKey))
		for _, v := range m.World {
			fmt.Fprintf(bw, "v %g %g %g\n", v[0], v[1], v[2])
		}
		for j := 0; j+2 < len(m.Indices); j += 3 {
			fmt.Fprintf(bw, "f %d %d %d\n",
				int(m.Indices[j])+offset, int(m.Indices[j+1])+offset, int(m.Indices[j+2])+offset)
		}
		offset += len(m.World)
	}
	return bw.Flush()
}

// WriteMTL writes one material entry per distinct material in the snapshot.
// Diffuse color carries the reflection coefficient and the transmission
// filter carries the transmission coefficient.
func WriteMTL(w io.Writer, s *Snapshot) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# acoustic materials for snapshot v%d\n", s.Version)

	seen := make(map[uint64]bool, len(s.Meshes))
	for _, m := range s.Meshes {
		if seen[m.MaterialKey] {
			continue
		}
		seen[m.MaterialKey] = true

		r, t := m.Material.Reflection, m.Material.Transmission
		fmt.Fprintf(bw, "\nnewmtl %s\n", materialName(m.MaterialKey))
		fmt.Fprintf(bw, "Kd %g %g %g\n", r, r, r)
		fmt.Fprintf(bw, "Tf %g %g %g\n", t, t, t)
		fmt.Fprintf(bw, "d %g\n", 1-t)
		fmt.Fprintln(bw, "illum 1")
	}
	return bw.Flush()
}

// ExportFiles writes base.obj and base.mtl.
func ExportFiles(s *Snapshot, base string) (err error) {
	objFile, err := os.Create(base + ".obj")
	if err != nil {
		return fmt.Errorf("scene: export obj: %w", err)
	}
	defer func() {
		if cerr := objFile.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	mtlFile, err := os.Create(base + ".mtl")
	if err != nil {
		return fmt.Errorf("scene: export mtl: %w", err)
	}
	defer func() {
		if cerr := mtlFile.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := WriteOBJ(objFile, s, filepath.Base(base)+".mtl"); err != nil {
		return err
	}
	return WriteMTL(mtlFile, s)
}
