// Package cli contains all business logic needed by the fiducial command.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	poseFlagCamera     = "camera"
	poseFlagConfig     = "config"
	poseFlagOutDir     = "out-dir"
	poseFlagRotate     = "rotate"
	poseFlagSkipFrames = "skip-frames"
	poseFlagDictionary = "dictionary"
	poseFlagReference  = "reference"
)

func newApp() *cli.App {
	cameraFlag := &cli.StringFlag{
		Name:     poseFlagCamera,
		Usage:    "camera model JSON `FILE`",
		Required: true,
	}
	configFlag := &cli.StringFlag{
		Name:    poseFlagConfig,
		Aliases: []string{"c"},
		Usage:   "marker config JSON `FILE` with width groups and boards",
	}
	rotateFlag := &cli.Float64Flag{
		Name:  poseFlagRotate,
		Usage: "rotate every frame counterclockwise by `DEGREES` before detection",
	}
	skipFramesFlag := &cli.IntFlag{
		Name:  poseFlagSkipFrames,
		Usage: "drop `N` frames after each processed frame",
	}
	dictionaryFlag := &cli.StringFlag{
		Name:  poseFlagDictionary,
		Usage: "marker dictionary name or id, overriding the config (e.g. DICT_5X5_250)",
	}

	return &cli.App{
		Name:            "fiducial",
		Usage:           "estimate camera-relative poses of fiducial markers and boards",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  generalFlagLogFile,
				Usage: "also write logs to rotating `FILE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "det",
				Usage:     "detect markers in an image or video and list them",
				ArgsUsage: "<image or video>",
				Flags:     []cli.Flag{configFlag, rotateFlag, skipFramesFlag, dictionaryFlag},
				Action:    DetectAction,
			},
			{
				Name:      "pose",
				Usage:     "estimate marker and board poses in an image or video",
				ArgsUsage: "<image or video>",
				Flags: []cli.Flag{
					cameraFlag, configFlag, rotateFlag, skipFramesFlag, dictionaryFlag,
					&cli.StringFlag{
						Name:  poseFlagOutDir,
						Usage: "write annotated frames to `DIR`",
					},
					&cli.StringFlag{
						Name:  poseFlagReference,
						Usage: "report the board nearest to board `NAME`, other than itself, in each frame",
					},
				},
				Action: PoseAction,
			},
			{
				Name:   "lens",
				Usage:  "print focal lengths and fields of view of a camera model",
				Flags:  []cli.Flag{cameraFlag},
				Action: LensAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of the marker config",
				Action: SchemaAction,
			},
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
