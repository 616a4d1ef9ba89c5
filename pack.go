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

// Package pack implements the Pack archive format: many input files packed
// into a single compressed, random-access archive file.
//
// An archive is written once by [Pack] and read back selectively at runtime
// with [Open]. Reading is safe for concurrent use from multiple goroutines
// provided each caller passes a distinct thread slot index to
// [Reader.ReadItem].
//
// Unless otherwise informed, callers should not assume that a [Reader] is
// safe for parallel use beyond what is explicitly documented on
// each method.
package pack

// VersionMajor, VersionMinor and VersionPatch are the library's hardcoded
// version. A [Reader] rejects any archive whose major or minor version
// differs from this library's; the patch version is informational only.
const (
	VersionMajor uint8 = 1
	VersionMinor uint8 = 0
	VersionPatch uint8 = 0
)

// Version returns the library's hardcoded version.
func Version() (major, minor, patch uint8) {
	return VersionMajor, VersionMinor, VersionPatch
}
