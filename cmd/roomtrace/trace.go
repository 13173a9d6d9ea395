package main

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/algo-acoustic/acoustic"
	"github.com/cwbudde/algo-acoustic/measure/ir"
	"github.com/cwbudde/algo-acoustic/types"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Unit cube centered on the origin.
var (
	cubeVertices = []types.Vec3{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
	}
	cubeIndices = []int32{
		0, 1, 2, 0, 2, 3,
		4, 6, 5, 4, 7, 6,
		0, 4, 5, 0, 5, 1,
		3, 2, 6, 3, 6, 7,
		0, 3, 7, 0, 7, 4,
		1, 5, 6, 1, 6, 2,
	}
)

// TraceRoom traces the sources given on the command line inside a box room.
func TraceRoom(ctx *cli.Context) error {
	setupLogging(ctx)

	size := float32(ctx.Float64("size"))
	if size <= 0 {
		return errors.New("room size must be positive")
	}
	material, err := parseMaterial(ctx.String("material"))
	if err != nil {
		return err
	}
	effect, err := parseEffect(ctx.String("effect"))
	if err != nil {
		return err
	}
	positions, err := parseSources(ctx.StringSlice("source"), size)
	if err != nil {
		return err
	}

	if err := acoustic.Initialize(0); err != nil {
		return err
	}
	defer acoustic.Finalize()

	c, err := acoustic.Create("",
		acoustic.WithSampleRate(ctx.Int("rate")),
		acoustic.WithReverbLength(float32(ctx.Float64("reverb"))),
	)
	if err != nil {
		return err
	}
	defer c.Destroy()

	mat, err := c.CreatePredefinedMaterial(material)
	if err != nil {
		return err
	}
	if _, err := c.CreateMesh(cubeVertices, cubeIndices, types.Scale4(size, size, size), mat); err != nil {
		return err
	}

	sources := make([]acoustic.Source, len(positions))
	for i, p := range positions {
		if sources[i], err = c.CreateSource(effect); err != nil {
			return err
		}
		if err := sources[i].SetLocation(p); err != nil {
			return err
		}
	}

	start := time.Now()
	for pass := 0; pass < max(ctx.Int("passes"), 1); pass++ {
		if err := c.TraceAudio(nil); err != nil {
			return err
		}
	}
	if err := c.Synchronize(); err != nil {
		return err
	}
	logger.Noticef("traced %d sources in a %.1f m %s room in %s", len(sources), size, material, time.Since(start))

	if base := ctx.String("export"); base != "" {
		if err := c.ExportOBJ(base); err != nil {
			return err
		}
		logger.Noticef("exported scene to %s.obj", base)
	}

	return displayFilterStats(c, sources, positions)
}

func displayFilterStats(c *acoustic.Context, sources []acoustic.Source, positions []types.Vec3) error {
	size, err := c.FilterArraySize()
	if err != nil {
		return err
	}
	rate, err := c.SampleRate()
	if err != nil {
		return err
	}
	format, err := c.OutputFormat()
	if err != nil {
		return err
	}
	channels, err := acoustic.OutputFormatChannels(format)
	if err != nil {
		return err
	}

	taps := size / 4 / channels
	data := make([]float32, size/4)
	h := make([]float64, taps)
	analyzer := ir.NewAnalyzer(float64(rate))

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Source", "Position", "Channel", "Occlusion", "Distance att.", "Peak (ms)", "Energy", "RT60 (s)", "EDT (s)", "C80 (dB)", "D50"})
	for i, s := range sources {
		if err := s.Filters(data); err != nil {
			return err
		}
		occlusion, distance, err := s.OcclusionSettings()
		if err != nil {
			return err
		}
		for ch := 0; ch < channels; ch++ {
			for j, v := range data[ch*taps : (ch+1)*taps] {
				h[j] = float64(v)
			}
			m, err := analyzer.Analyze(h)
			if err != nil && !errors.Is(err, ir.ErrSilent) {
				return fmt.Errorf("source %d channel %d: %w", i, ch, err)
			}
			table.Append([]string{
				fmt.Sprintf("%d", i),
				fmt.Sprintf("%.2f,%.2f,%.2f", positions[i][0], positions[i][1], positions[i][2]),
				fmt.Sprintf("%d", ch),
				fmt.Sprintf("%.3f", occlusion),
				fmt.Sprintf("%.3f", distance),
				fmt.Sprintf("%.2f", m.PeakTime*1000),
				fmt.Sprintf("%.4g", m.Energy),
				fmt.Sprintf("%.3f", m.RT60),
				fmt.Sprintf("%.3f", m.EDT),
				fmt.Sprintf("%.1f", m.C80),
				fmt.Sprintf("%.3f", m.D50),
			})
		}
	}
	table.Render()
	logger.Noticef("filter statistics\n%s", buf.String())
	return nil
}

func parseMaterial(name string) (acoustic.PredefinedMaterial, error) {
	for _, m := range acoustic.PredefinedMaterials() {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown material %q", name)
}

func parseEffect(name string) (acoustic.EffectPreset, error) {
	for p := acoustic.EffectLow; p <= acoustic.EffectPro; p++ {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown effect preset %q", name)
}

// parseSources reads x,y,z triples. Without any, one source is placed a
// quarter of the room in front of the listener.
func parseSources(args []string, size float32) ([]types.Vec3, error) {
	if len(args) == 0 {
		return []types.Vec3{types.XYZ(0, 0, -size/4)}, nil
	}
	out := make([]types.Vec3, 0, len(args))
	for _, arg := range args {
		parts := strings.Split(arg, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("source %q: want x,y,z", arg)
		}
		var v types.Vec3
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", arg, err)
			}
			v[i] = float32(f)
		}
		out = append(out, v)
	}
	return out, nil
}
