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

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// FilePair associates a source file on disk with the logical path it will
// be stored under inside the archive.
type FilePair struct {
	FilePath string
	ItemPath string
}

// writeConfig holds the options recognized by [Pack].
type writeConfig struct {
	preferSpeed   bool
	printProgress bool
	onItem        func(index uint64)
	dataVersion   uint32
}

// Option configures a [Pack] call.
type Option func(*writeConfig)

// WithPreferSpeed selects the fast codec (LZ4) instead of the default
// high-ratio codec (zstd).
func WithPreferSpeed(preferSpeed bool) Option {
	return func(c *writeConfig) { c.preferSpeed = preferSpeed }
}

// WithProgress enables printing per-item and summary progress to stdout,
// matching the original packer CLI's verbose output.
func WithProgress(printProgress bool) Option {
	return func(c *writeConfig) { c.printProgress = printProgress }
}

// WithOnItem registers a callback invoked with the index of each item just
// before it is packed.
func WithOnItem(onItem func(index uint64)) Option {
	return func(c *writeConfig) { c.onItem = onItem }
}

// WithDataVersion sets an application-defined schema version recorded in
// the archive header. A [Reader] opened with [WithReaderDataVersion] will
// reject archives whose DataVersion does not match. 0 (the default) means
// no version is recorded and none is required on read.
func WithDataVersion(dataVersion uint32) Option {
	return func(c *writeConfig) { c.dataVersion = dataVersion }
}

// Pack writes pairs into a new archive at archivePath. Pairs are
// deduplicated by FilePath (first occurrence wins), sorted by ItemPath, and
// written in that sorted order so the resulting archive's on-disk item
// order is already the order a [Reader] needs for binary search.
//
// zipThreshold, in [0.0, 1.0], controls when a compressed payload is kept:
// it is kept only if zipThreshold+compressedSize/uncompressedSize <= 1.0,
// i.e. a threshold of 0.1 requires at least a 10% size reduction.
//
// On any error the partially written archive file is closed and removed.
func Pack(archivePath string, pairs []FilePair, zipThreshold float64, opts ...Option) error {
	if len(pairs) == 0 {
		return fmt.Errorf("%w: no items to pack", ErrBadDataSize)
	}
	if zipThreshold < 0.0 || zipThreshold > 1.0 {
		return fmt.Errorf("%w: zipThreshold out of range: %v", ErrBadDataSize, zipThreshold)
	}

	var cfg writeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	pairs = dedupPairsByFilePath(pairs)
	sort.Slice(pairs, func(i, j int) bool {
		return comparePaths([]byte(pairs[i].ItemPath), []byte(pairs[j].ItemPath)) < 0
	})

	f, err := os.OpenFile(archivePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating archive: %w", ErrPack, err)
	}

	header := FileHeader{
		Magic:        nativeMagic(),
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		VersionPatch: VersionPatch,
		ItemCount:    uint64(len(pairs)),
		CodecID:      codecFor(cfg.preferSpeed).id(),
		DataVersion:  cfg.dataVersion,
	}
	if !isLittleEndian {
		header.IsBigEndian = 1
	}

	if _, err := f.Write(header.encode()); err != nil {
		f.Close()
		os.Remove(archivePath)
		return fmt.Errorf("%w: writing header: %w", ErrPack, err)
	}

	if err := writePackItems(f, pairs, zipThreshold, cfg); err != nil {
		f.Close()
		os.Remove(archivePath)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(archivePath)
		return fmt.Errorf("%w: closing archive: %w", ErrPack, err)
	}

	return nil
}

// dedupPairsByFilePath keeps the first occurrence of each distinct
// FilePath, preserving input order.
func dedupPairsByFilePath(pairs []FilePair) []FilePair {
	out := make([]FilePair, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if seen[p.FilePath] {
			continue
		}
		seen[p.FilePath] = true
		out = append(out, p)
	}
	return out
}

// writePackItems is the Writer engine's per-item pipeline: read, compress,
// dedup-check, and emit each item in the given (already-sorted) order.
func writePackItems(f *os.File, pairs []FilePair, zipThreshold float64, cfg writeConfig) error {
	itemCount := len(pairs)
	headers := make([]ItemHeader, itemCount)
	c := codecFor(cfg.preferSpeed)

	fileOffset := uint64(fileHeaderSize)
	var rawTotal uint64

	for i, pair := range pairs {
		if cfg.printProgress {
			printPackProgress("Packing", i, itemCount, pair.ItemPath)
		}
		if cfg.onItem != nil {
			cfg.onItem(uint64(i))
		}

		pathBytes := []byte(pair.ItemPath)
		if len(pathBytes) == 0 || len(pathBytes) > math.MaxUint8 {
			return fmt.Errorf("%w: item path length %d out of range", ErrBadDataSize, len(pathBytes))
		}

		itemData, fileSize, err := readWholeFile(pair.FilePath)
		if err != nil {
			return err
		}
		if fileSize == 0 {
			return fmt.Errorf("%w: item %q has no data", ErrBadDataSize, pair.ItemPath)
		}
		if fileSize > math.MaxUint32 {
			return fmt.Errorf("%w: item %q exceeds 4GiB", ErrBadDataSize, pair.ItemPath)
		}

		header := ItemHeader{
			DataSize: uint32(fileSize),
			PathSize: uint8(len(pathBytes)),
		}

		storedData := itemData
		if compressed, err := c.compress(itemData, int(fileSize)-1); err == nil {
			ratio := float64(len(compressed)) / float64(fileSize)
			if zipThreshold+ratio <= 1.0 {
				header.ZipSize = uint32(len(compressed))
				storedData = compressed
			}
		}

		if dataOffset, ok := findDuplicate(f, headers[:i], header, storedData); ok {
			header.IsReference = true
			header.DataOffset = dataOffset
		} else {
			header.DataOffset = fileOffset + itemHeaderSize + uint64(header.PathSize)
		}

		headers[i] = header

		if _, err := f.Seek(int64(fileOffset), io.SeekStart); err != nil {
			return fmt.Errorf("%w: seeking to write item %q: %w", ErrPack, pair.ItemPath, err)
		}
		if _, err := f.Write(header.encode()); err != nil {
			return fmt.Errorf("%w: writing item header %q: %w", ErrPack, pair.ItemPath, err)
		}
		if _, err := f.Write(pathBytes); err != nil {
			return fmt.Errorf("%w: writing item path %q: %w", ErrPack, pair.ItemPath, err)
		}
		fileOffset += itemHeaderSize + uint64(header.PathSize)

		storedSize := uint64(0)
		if !header.IsReference {
			if _, err := f.Write(storedData); err != nil {
				return fmt.Errorf("%w: writing item payload %q: %w", ErrPack, pair.ItemPath, err)
			}
			storedSize = uint64(len(storedData))
			fileOffset += storedSize
		}

		rawTotal += uint64(fileSize)
		if cfg.printProgress {
			fmt.Printf("(%d/%d bytes)\n", storedSize, fileSize)
		}
	}

	if cfg.printProgress {
		printPackSummary("Packed", itemCount, fileOffset, rawTotal)
	}
	return nil
}

// readWholeFile reads the file at path fully into memory and reports its
// size.
func readWholeFile(path string) ([]byte, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: opening %q: %w", ErrPack, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: stat %q: %w", ErrPack, path, err)
	}

	data := make([]byte, info.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, 0, fmt.Errorf("%w: reading %q: %w", ErrPack, path, err)
	}
	return data, uint64(info.Size()), nil
}

// findDuplicate looks for an earlier item whose stored payload is
// byte-identical to storedData. The (ZipSize, DataSize) pair is checked
// first to prune comparisons so the common case costs nothing beyond a
// couple of integer comparisons.
func findDuplicate(f *os.File, earlier []ItemHeader, header ItemHeader, storedData []byte) (uint64, bool) {
	storedSize := header.storedPayloadSize()
	buf := make([]byte, storedSize)
	for _, other := range earlier {
		if other.ZipSize != header.ZipSize || other.DataSize != header.DataSize {
			continue
		}
		if _, err := f.Seek(int64(other.DataOffset), io.SeekStart); err != nil {
			continue
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			continue
		}
		if bytes.Equal(buf, storedData) {
			return other.DataOffset, true
		}
	}
	return 0, false
}

func printPackProgress(verb string, index, total int, itemPath string) {
	progress := int((float64(index+1) / float64(total)) * 100.0)
	spacing := ""
	switch {
	case progress < 10:
		spacing = "  "
	case progress < 100:
		spacing = " "
	}
	fmt.Printf("[%s%d%%] %s file %s ", spacing, progress, verb, itemPath)
}

func printPackSummary(verb string, itemCount int, storedSize, rawSize uint64) {
	var saved int
	if rawSize > 0 {
		saved = int((1.0 - float64(storedSize)/float64(rawSize)) * 100.0)
	}
	fmt.Printf("%s %d files. (%d/%d bytes, %d%% saved)\n", verb, itemCount, storedSize, rawSize, saved)
}
