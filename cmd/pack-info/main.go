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

// Command pack-info prints the header and item directory of a Pack archive.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rodaine/table"
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
		Usage: "Print the header and item directory of a Pack archive.",
		Description: strings.Join([]string{
			"pack-info inspects a Pack archive without extracting it.",
			"https://github.com/cfnptr/pack",
		}, "\n"),
		ArgsUsage: "<pack-path>",
		Flags: []cli.Flag{
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
	if len(args) != 1 {
		cliutil.Check(cli.ShowAppHelp(c))
		return fmt.Errorf("%w: expected exactly one pack path", cliutil.ErrFlagParse)
	}
	archivePath := args[0]

	header, err := pack.ReadHeader(archivePath)
	if err != nil {
		return err
	}

	major, minor, patch := pack.Version()
	fmt.Printf("Pack [v%d.%d.%d]\n\nPack information:\n"+
		"    Version: %d.%d.%d\n"+
		"    Big endian: %t\n"+
		"    Item count: %d\n"+
		"    Data version: %d\n\n",
		major, minor, patch,
		header.VersionMajor, header.VersionMinor, header.VersionPatch,
		header.IsBigEndian != 0, header.ItemCount, header.DataVersion)

	r, err := pack.Open(archivePath, 1)
	if err != nil {
		return err
	}
	defer r.Close()

	tbl := table.New("index", "path", "data size", "zip size", "file offset", "reference")
	for i := 0; i < r.ItemCount(); i++ {
		tbl.AddRow(
			i,
			r.ItemPath(i),
			r.ItemDataSize(i),
			r.ItemZipSize(i),
			r.ItemFileOffset(i),
			r.IsItemReference(i),
		)
	}
	tbl.Print()

	return nil
}

func main() {
	// ExitErrHandler above already terminates the process on error.
	_ = newApp().Run(os.Args)
}
