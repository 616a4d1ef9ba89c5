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

// Command unpacker extracts every item of a Pack archive into a directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
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
		Usage: "Extract every item of a Pack archive.",
		Description: strings.Join([]string{
			"unpacker extracts a Pack archive into a destination directory.",
			"https://github.com/cfnptr/pack",
		}, "\n"),
		ArgsUsage: "<pack-path> [dest-dir]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"t"},
				Usage:   "number of threads used to unpack items concurrently",
				Value:   runtime.NumCPU(),
			},
			&cli.BoolFlag{
				Name:               "progress",
				Aliases:            []string{"p"},
				Usage:              "print per-item progress while unpacking",
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

	args := c.Args().Slice()
	if len(args) < 1 {
		cliutil.Check(cli.ShowAppHelp(c))
		return fmt.Errorf("%w: missing pack path", cliutil.ErrFlagParse)
	}

	archivePath := args[0]
	destDir := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	if len(args) > 1 {
		destDir = args[1]
	}

	threads := c.Int("threads")
	if threads < 1 {
		threads = 1
	}

	r, err := pack.Open(archivePath, threads)
	if err != nil {
		return err
	}
	defer r.Close()

	opts := []pack.UnpackOption{pack.WithUnpackProgress(c.Bool("progress"))}
	if threads == 1 {
		return pack.Unpack(r, destDir, opts...)
	}
	return pack.UnpackConcurrent(r, destDir, threads, opts...)
}

func main() {
	// ExitErrHandler above already terminates the process on error.
	_ = newApp().Run(os.Args)
}
