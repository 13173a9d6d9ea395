// Command roomtrace traces a box shaped room and reports the acoustic
// parameters of the resulting filters.
//
// Usage:
//
//	roomtrace [-v|-vv] [--profile cpu|mem] command [flags]
//
// Examples:
//
//	roomtrace trace --size 8 --material wood --source 1,0,-2 --source -2,1,0
//	roomtrace trace --export room
//	roomtrace materials
//	roomtrace status
package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/algo-acoustic/acoustic"
	"github.com/pkg/profile"
	"github.com/urfave/cli"
)

var profiler interface{ Stop() }

func main() {
	major, minor := acoustic.VersionParts(acoustic.Version())

	app := cli.NewApp()
	app.Name = "roomtrace"
	app.Usage = "trace room acoustics and inspect the produced filters"
	app.Version = fmt.Sprintf("%d.%d", major, minor)
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "profile",
			Usage: "write a cpu or mem profile to the working directory",
		},
	}
	app.Before = startProfile
	app.After = stopProfile
	app.Commands = []cli.Command{
		{
			Name:  "trace",
			Usage: "trace sources in a box room",
			Description: `
Build a closed box of the given size and material around the listener at the
origin, trace every source and print energy, reverberation time and clarity
for each output channel of its filters.`,
			Flags: []cli.Flag{
				cli.Float64Flag{
					Name:  "size",
					Value: 10,
					Usage: "edge length of the room in meters",
				},
				cli.StringFlag{
					Name:  "material, m",
					Value: "concrete",
					Usage: "predefined wall material",
				},
				cli.StringSliceFlag{
					Name:  "source, s",
					Value: &cli.StringSlice{},
					Usage: "source position as x,y,z (repeatable)",
				},
				cli.StringFlag{
					Name:  "effect",
					Value: acoustic.DefaultEffectPreset.String(),
					Usage: "effect preset of every source: low, medium, high or pro",
				},
				cli.IntFlag{
					Name:  "rate",
					Value: acoustic.DefaultSampleRate,
					Usage: "output sample rate",
				},
				cli.Float64Flag{
					Name:  "reverb",
					Value: acoustic.DefaultReverbLength,
					Usage: "filter length in seconds",
				},
				cli.IntFlag{
					Name:  "passes",
					Value: 1,
					Usage: "number of traces, later passes blend into earlier ones",
				},
				cli.StringFlag{
					Name:  "export, o",
					Usage: "write the committed scene to <base>.obj and <base>.mtl",
				},
			},
			ArgsUsage: " ",
			Action:    TraceRoom,
		},
		{
			Name:   "materials",
			Usage:  "list predefined materials",
			Action: ListMaterials,
		},
		{
			Name:   "status",
			Usage:  "list status codes",
			Action: ListStatus,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func startProfile(ctx *cli.Context) error {
	switch mode := ctx.GlobalString("profile"); mode {
	case "":
	case "cpu":
		profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		profiler = profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	default:
		return fmt.Errorf("unknown profile mode %q", mode)
	}
	return nil
}

func stopProfile(*cli.Context) error {
	if profiler != nil {
		profiler.Stop()
	}
	return nil
}
