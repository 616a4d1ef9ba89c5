// Copyright 2021-2025 Nikita Fediuchin. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command packer creates a Pack archive from a list of file/item path pairs.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"sigs.k8s.io/release-utils/version"

	"github.com/cfnptr/pack"
	"github.com/cfnptr/pack/cmd/internal/cliutil"
)

func init() {
	cliutil.HideHelpFlag()
}

func newApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Pack files into a single compressed, random-access archive.",
		Description: strings.Join([]string{
			"packer creates a Pack archive from file/item path pairs.",
			"https://github.com/cfnptr/pack",
		}, "\n"),
		ArgsUsage: "<pack-path> <file-path-1> <item-path-1> ...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "zip-threshold",
				Aliases: []string{"z"},
				Usage:   "minimum compression savings required to keep a compressed item, in percent (0-100)",
				Value:   10,
			},
			&cli.Uint64Flag{
				Name:    "data-version",
				Aliases: []string{"v"},
				Usage:   "application-defined schema version recorded in the archive header",
				Value:   0,
			},
			&cli.BoolFlag{
				Name:               "prefer-speed",
				Aliases:            []string{"s"},
				Usage:              "use the fast codec instead of the high-ratio codec",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "progress",
				Aliases:            []string{"p"},
				Usage:              "print per-item progress while packing",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "help",
				Aliases:            []string{"h"},
				Usage:              "print this help text and exit",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "version",
				Usage:              "print version information and exit",
				DisableDefaultText: true,
			},
		},
		Copyright:       "Nikita Fediuchin",
		HideHelp:        true,
		HideHelpCommand: true,
		Action:          run,
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			_ = cliutil.Must(fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err))
			cli.OsExiter(cliutil.ExitCodeFor(err))
		},
	}
}

func run(c *cli.Context) error {
	if c.Bool("help") {
		cliutil.Check(cli.ShowAppHelp(c))
		return nil
	}
	if c.Bool("version") {
		versionInfo := version.GetVersionInfo()
		_ = cliutil.Must(fmt.Fprintf(c.App.Writer, "%s %s\n%s\n", c.App.Name, versionInfo.GitVersion, versionInfo.String()))
		return nil
	}

	zipPercent := c.Int("zip-threshold")
	if zipPercent < 0 || zipPercent > 100 {
		return fmt.Errorf("%w: zip-threshold must be in range 0-100, got %d", cliutil.ErrFlagParse, zipPercent)
	}

	args := c.Args().Slice()
	if len(args) < 3 {
		cliutil.Check(cli.ShowAppHelp(c))
		return fmt.Errorf("%w: missing pack path and/or file path pairs", cliutil.ErrFlagParse)
	}

	archivePath := args[0]
	rest := args[1:]
	if len(rest)%2 != 0 {
		return fmt.Errorf("%w: got an odd number of file/item paths, missing one of a pair", cliutil.ErrFlagParse)
	}

	pairs := make([]pack.FilePair, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		pairs = append(pairs, pack.FilePair{FilePath: rest[i], ItemPath: rest[i+1]})
	}

	opts := []pack.Option{
		pack.WithDataVersion(uint32(c.Uint64("data-version"))),
		pack.WithPreferSpeed(c.Bool("prefer-speed")),
		pack.WithProgress(c.Bool("progress")),
	}

	if err := pack.Pack(archivePath, pairs, float64(zipPercent)/100.0, opts...); err != nil {
		return err
	}
	return nil
}

func main() {
	// ExitErrHandler above already terminates the process on error.
	_ = newApp().Run(os.Args)
}
