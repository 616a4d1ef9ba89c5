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

package pack

import "errors"

// ErrPack is the base error every error returned by this package wraps.
var ErrPack = errors.New("pack")

// Sentinel errors callers may match against with errors.Is. Each wraps
// ErrPack so errors.Is(err, ErrPack) is always true for package errors.
var (
	ErrBadMagic       = wrap("not a Pack archive")
	ErrBadVersion     = wrap("unsupported archive version")
	ErrBadEndianness  = wrap("archive endianness does not match host")
	ErrBadDataSize    = wrap("bad item data size")
	ErrBadDataVersion = wrap("archive data version does not match")
	ErrItemNotFound   = wrap("item not found")
	ErrDecompress     = wrap("failed to decompress item")
	ErrUnsupported    = wrap("unsupported on this platform")
)

func wrap(msg string) error {
	return &packError{msg: msg}
}

type packError struct {
	msg string
}

func (e *packError) Error() string { return "pack: " + e.msg }
func (e *packError) Unwrap() error { return ErrPack }

// Result is the closed set of outcome codes the original Pack library
// returns from every fallible call. Idiomatic Go callers should prefer
// errors.Is against the sentinels above; Result exists for callers (such as
// the pack-info tool) that want to report the legacy numeric result code.
type Result uint8

const (
	SuccessResult Result = iota
	FailedToAllocateResult
	FailedToCreateCodecResult
	FailedToCreateFileResult
	FailedToOpenFileResult
	FailedToWriteFileResult
	FailedToReadFileResult
	FailedToSeekFileResult
	FailedToGetDirectoryResult
	FailedToDecompressResult
	FailedToGetItemResult
	BadDataSizeResult
	BadFileTypeResult
	BadFileVersionResult
	BadFileEndiannessResult
	BadFileDataVersionResult
)

var resultStrings = [...]string{
	"Success",
	"Failed to allocate",
	"Failed to create codec",
	"Failed to create file",
	"Failed to open file",
	"Failed to write file",
	"Failed to read file",
	"Failed to seek file",
	"Failed to get directory",
	"Failed to decompress",
	"Failed to get item",
	"Bad data size",
	"Bad file type",
	"Bad file version",
	"Bad file endianness",
	"Bad file data version",
}

// String returns the human-readable result code string, matching the
// original Pack library's packResultToString.
func (r Result) String() string {
	if int(r) >= len(resultStrings) {
		return "Unknown Pack result"
	}
	return resultStrings[r]
}

// ResultFromError maps an error returned by this package to its legacy
// Result code. Errors that do not originate from this package map to
// FailedToReadFileResult, a conservative default.
func ResultFromError(err error) Result {
	if err == nil {
		return SuccessResult
	}
	switch {
	case errors.Is(err, ErrBadMagic):
		return BadFileTypeResult
	case errors.Is(err, ErrBadVersion):
		return BadFileVersionResult
	case errors.Is(err, ErrBadEndianness):
		return BadFileEndiannessResult
	case errors.Is(err, ErrBadDataVersion):
		return BadFileDataVersionResult
	case errors.Is(err, ErrBadDataSize):
		return BadDataSizeResult
	case errors.Is(err, ErrItemNotFound):
		return FailedToGetItemResult
	case errors.Is(err, ErrDecompress):
		return FailedToDecompressResult
	default:
		return FailedToReadFileResult
	}
}
