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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// readConfig holds the options recognized by [Open].
type readConfig struct {
	dataVersion      uint32
	checkDataVersion bool
}

// ReaderOption configures an [Open] call.
type ReaderOption func(*readConfig)

// WithReaderDataVersion requires the archive's DataVersion header field to
// equal want. Opening fails with ErrBadDataVersion otherwise. Use this when
// the caller's code has a schema expectation about the archive's contents
// that the raw format itself cannot express.
func WithReaderDataVersion(want uint32) ReaderOption {
	return func(c *readConfig) {
		c.dataVersion = want
		c.checkDataVersion = true
	}
}

// Reader provides read-only, concurrent, random-access lookup into an
// opened Pack archive. Every exported method that takes a threadSlot
// parameter is safe to call concurrently from multiple goroutines provided
// each goroutine uses a distinct slot in [0, threadCount).
type Reader struct {
	files  []*os.File
	header FileHeader
	items  []ItemHeader
	paths  [][]byte
	codec  codec
}

// Open opens the archive at archivePath and loads its directory. threadCount
// file handles are opened so up to threadCount goroutines may call
// [Reader.ReadItem] concurrently, each with its own threadSlot in
// [0, threadCount).
func Open(archivePath string, threadCount int, opts ...ReaderOption) (*Reader, error) {
	if threadCount < 1 {
		return nil, fmt.Errorf("%w: threadCount must be >= 1, got %d", ErrPack, threadCount)
	}

	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	files := make([]*os.File, threadCount)
	for i := range files {
		f, err := os.Open(archivePath)
		if err != nil {
			closeAll(files[:i])
			return nil, fmt.Errorf("%w: opening %q: %w", ErrPack, archivePath, err)
		}
		files[i] = f
	}

	header, err := readFileHeader(files[0])
	if err != nil {
		closeAll(files)
		return nil, err
	}
	if err := validateFileHeader(header, cfg); err != nil {
		closeAll(files)
		return nil, err
	}
	if header.ItemCount == 0 {
		closeAll(files)
		return nil, fmt.Errorf("%w: archive has no items", ErrBadDataSize)
	}

	c, err := codecByID(header.CodecID)
	if err != nil {
		closeAll(files)
		return nil, err
	}

	items, paths, err := loadDirectory(files[0], header.ItemCount)
	if err != nil {
		closeAll(files)
		return nil, err
	}

	return &Reader{
		files:  files,
		header: header,
		items:  items,
		paths:  paths,
		codec:  c,
	}, nil
}

// OpenResources opens an archive stored under the platform's application
// resources directory, joined with relativePath. See [resourcesDir] for how
// that directory is located on each supported platform.
func OpenResources(relativePath string, threadCount int, opts ...ReaderOption) (*Reader, error) {
	dir, err := resourcesDir()
	if err != nil {
		return nil, err
	}
	return Open(filepath.Join(dir, relativePath), threadCount, opts...)
}

func closeAll(files []*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}

// readFileHeader reads and decodes the FileHeader at the start of f, without
// disturbing the file's read position for callers that read sequentially
// afterward.
func readFileHeader(f *os.File) (FileHeader, error) {
	buf := make([]byte, fileHeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return FileHeader{}, fmt.Errorf("%w: reading header: %w", ErrPack, err)
	}
	return decodeFileHeader(buf), nil
}

// ReadHeader reads and validates the FileHeader of the archive at
// archivePath without loading its directory, for tools (such as pack-info)
// that only need the header summary.
func ReadHeader(archivePath string) (FileHeader, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return FileHeader{}, fmt.Errorf("%w: opening %q: %w", ErrPack, archivePath, err)
	}
	defer f.Close()

	header, err := readFileHeader(f)
	if err != nil {
		return FileHeader{}, err
	}
	if err := validateFileHeader(header, readConfig{}); err != nil {
		return FileHeader{}, err
	}
	return header, nil
}

func validateFileHeader(header FileHeader, cfg readConfig) error {
	if header.Magic != nativeMagic() {
		return fmt.Errorf("%w: got %x", ErrBadMagic, header.Magic)
	}
	if header.VersionMajor != VersionMajor || header.VersionMinor != VersionMinor {
		return fmt.Errorf("%w: archive is v%d.%d.%d, library is v%d.%d.%d",
			ErrBadVersion, header.VersionMajor, header.VersionMinor, header.VersionPatch,
			VersionMajor, VersionMinor, VersionPatch)
	}
	wantBigEndian := uint8(0)
	if !isLittleEndian {
		wantBigEndian = 1
	}
	if header.IsBigEndian != wantBigEndian {
		return ErrBadEndianness
	}
	if cfg.checkDataVersion && header.DataVersion != cfg.dataVersion {
		return fmt.Errorf("%w: archive is v%d, want v%d", ErrBadDataVersion, header.DataVersion, cfg.dataVersion)
	}
	return nil
}

// loadDirectory sequentially parses itemCount (header, path) pairs starting
// right after the FileHeader. Pack has no separate directory section: each
// item's header and path are followed immediately by its payload bytes
// (unless the item is a deduplication reference), so loading the directory
// means walking every item's header while skipping its payload bytes.
func loadDirectory(f *os.File, itemCount uint64) ([]ItemHeader, [][]byte, error) {
	items := make([]ItemHeader, itemCount)
	paths := make([][]byte, itemCount)

	cursor := int64(fileHeaderSize)
	entryBuf := make([]byte, itemHeaderSize)

	for i := uint64(0); i < itemCount; i++ {
		if _, err := f.ReadAt(entryBuf, cursor); err != nil {
			return nil, nil, fmt.Errorf("%w: reading item %d header: %w", ErrPack, i, err)
		}
		header := decodeItemHeader(entryBuf)
		cursor += itemHeaderSize

		if header.DataSize == 0 || header.PathSize == 0 || header.DataOffset == 0 {
			return nil, nil, fmt.Errorf("%w: item %d has an invalid header", ErrBadDataSize, i)
		}

		path := make([]byte, header.PathSize)
		if _, err := f.ReadAt(path, cursor); err != nil {
			return nil, nil, fmt.Errorf("%w: reading item %d path: %w", ErrPack, i, err)
		}
		cursor += int64(header.PathSize)

		if !header.IsReference {
			cursor += int64(header.storedPayloadSize())
		}

		items[i] = header
		paths[i] = path
	}

	if !sort.SliceIsSorted(items, func(a, b int) bool {
		return comparePaths(paths[a], paths[b]) < 0
	}) {
		return nil, nil, fmt.Errorf("%w: archive items are not sorted by path", ErrBadDataSize)
	}

	return items, paths, nil
}

// ItemCount returns the number of items in the archive.
func (r *Reader) ItemCount() int { return len(r.items) }

// DataVersion returns the archive's application-defined schema version.
func (r *Reader) DataVersion() uint32 { return r.header.DataVersion }

// FindIndex returns the index of itemPath using binary search over the
// archive's sorted directory, and whether it was found.
func (r *Reader) FindIndex(itemPath string) (int, bool) {
	target := []byte(itemPath)
	n := len(r.items)
	i := sort.Search(n, func(i int) bool {
		return comparePaths(r.paths[i], target) >= 0
	})
	if i < n && comparePaths(r.paths[i], target) == 0 {
		return i, true
	}
	return 0, false
}

// ItemPath returns the logical path of the item at index.
func (r *Reader) ItemPath(index int) string { return string(r.paths[index]) }

// ItemDataSize returns the uncompressed size of the item at index.
func (r *Reader) ItemDataSize(index int) uint32 { return r.items[index].DataSize }

// ItemZipSize returns the compressed size of the item at index, or 0 if it
// is stored uncompressed.
func (r *Reader) ItemZipSize(index int) uint32 { return r.items[index].ZipSize }

// ItemFileOffset returns the archive file offset of the item's payload.
func (r *Reader) ItemFileOffset(index int) uint64 { return r.items[index].DataOffset }

// IsItemReference reports whether the item at index is a deduplication
// reference to another item's payload rather than owning its own.
func (r *Reader) IsItemReference(index int) bool { return r.items[index].IsReference }

// ReadItem reads and decompresses the item at index using the file handle
// assigned to threadSlot. If dst has enough capacity its backing array is
// reused; otherwise a new slice is allocated. Concurrent calls are safe as
// long as each concurrent caller uses a distinct threadSlot.
func (r *Reader) ReadItem(threadSlot, index int, dst []byte) ([]byte, error) {
	if threadSlot < 0 || threadSlot >= len(r.files) {
		return nil, fmt.Errorf("%w: thread slot %d out of range", ErrPack, threadSlot)
	}
	if index < 0 || index >= len(r.items) {
		return nil, fmt.Errorf("%w: item index %d out of range", ErrItemNotFound, index)
	}

	header := r.items[index]
	storedSize := header.storedPayloadSize()
	buf := make([]byte, storedSize)
	//nolint:gosec // DataOffset is bounds-checked to 55 bits at write time.
	if _, err := r.files[threadSlot].ReadAt(buf, int64(header.DataOffset)); err != nil {
		return nil, fmt.Errorf("%w: reading item %q: %w", ErrPack, r.ItemPath(index), err)
	}

	if header.ZipSize == 0 {
		return copyOut(dst, buf), nil
	}

	data, err := r.codec.decompress(buf, int(header.DataSize))
	if err != nil {
		return nil, err
	}
	return copyOut(dst, data), nil
}

func copyOut(dst, src []byte) []byte {
	if cap(dst) >= len(src) {
		dst = dst[:len(src)]
		copy(dst, src)
		return dst
	}
	return src
}

// Close closes every thread slot's file handle.
func (r *Reader) Close() error {
	var firstErr error
	for _, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: closing archive: %w", ErrPack, err)
		}
	}
	return firstErr
}

var _ io.Closer = (*Reader)(nil)
