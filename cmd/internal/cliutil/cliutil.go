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

// Package cliutil holds the small set of helpers shared by the packer,
// unpacker and pack-info command-line tools.
package cliutil

import (
	"errors"

	"github.com/urfave/cli/v2"
)

const (
	// ExitCodeSuccess is the successful exit code.
	ExitCodeSuccess int = iota

	// ExitCodeFlagParseError is the exit code for a flag parsing error.
	ExitCodeFlagParseError

	// ExitCodeUnknownError is the exit code for an unknown error.
	ExitCodeUnknownError
)

// ErrFlagParse is a flag parsing error.
var ErrFlagParse = errors.New("parsing flags")

// Check panics if err is non-nil.
func Check(err error) {
	if err != nil {
		panic(err)
	}
}

// Must panics if err is non-nil, otherwise returns val.
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// HideHelpFlag moves cli's implicit help flag to an unguessable name so
// `--help` never collides with a positional archive or item path argument.
// See: github.com/urfave/cli/issues/1809
func HideHelpFlag() {
	cli.HelpFlag = &cli.BoolFlag{
		Name:               "d41d8cd98f00b204e980",
		DisableDefaultText: true,
	}
}

// ExitCodeFor returns the exit code for an error returned by a command's
// Action.
func ExitCodeFor(err error) int {
	if errors.Is(err, ErrFlagParse) {
		return ExitCodeFlagParseError
	}
	return ExitCodeUnknownError
}
