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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond"
)

// unpackConfig holds the options recognized by [Unpack] and
// [UnpackConcurrent].
type unpackConfig struct {
	printProgress bool
	onItem        func(index int)
}

// UnpackOption configures an [Unpack] or [UnpackConcurrent] call.
type UnpackOption func(*unpackConfig)

// WithUnpackProgress enables printing per-item and summary progress to
// stdout, matching the original unpacker CLI's verbose output.
func WithUnpackProgress(printProgress bool) UnpackOption {
	return func(c *unpackConfig) { c.printProgress = printProgress }
}

// WithUnpackOnItem registers a callback invoked after each item has been
// written to disk, with its index.
func WithUnpackOnItem(onItem func(index int)) UnpackOption {
	return func(c *unpackConfig) { c.onItem = onItem }
}

// sanitizeItemPath replaces path separators embedded in an archive item's
// logical path with a hyphen, so every item unpacks as a single flat file
// directly under destDir regardless of how its path was recorded.
func sanitizeItemPath(itemPath string) string {
	itemPath = strings.ReplaceAll(itemPath, "/", "-")
	itemPath = strings.ReplaceAll(itemPath, "\\", "-")
	return itemPath
}

// Unpack extracts every item of r to destDir sequentially, one at a time,
// using a single scratch buffer shared across items. On any error, every
// file already written during this call is removed before the error is
// returned, so a failed unpack never leaves a partial extraction behind.
func Unpack(r *Reader, destDir string, opts ...UnpackOption) error {
	var cfg unpackConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %q: %w", ErrPack, destDir, err)
	}

	itemCount := r.ItemCount()
	var buf []byte
	var rawTotal, storedTotal uint64
	var written []string

	for i := 0; i < itemCount; i++ {
		itemPath := r.ItemPath(i)
		if cfg.printProgress {
			printPackProgress("Unpacking", i, itemCount, itemPath)
		}

		data, err := r.ReadItem(0, i, buf)
		if err != nil {
			removeUnpackedFiles(written)
			return err
		}
		buf = data

		dstPath, err := writeUnpackedFile(destDir, itemPath, data)
		if err != nil {
			removeUnpackedFiles(written)
			return err
		}
		written = append(written, dstPath)

		rawTotal += uint64(r.ItemDataSize(i))
		if !r.IsItemReference(i) {
			storedTotal += uint64(r.items[i].storedPayloadSize())
		}
		if cfg.printProgress {
			fmt.Printf("(%d bytes)\n", len(data))
		}
		if cfg.onItem != nil {
			cfg.onItem(i)
		}
	}

	if cfg.printProgress {
		printPackSummary("Unpacked", itemCount, storedTotal, rawTotal)
	}
	return nil
}

// UnpackConcurrent extracts every item of r to destDir using a worker pool
// of threadCount goroutines. Item i is read through [Reader] thread slot
// i % threadCount, and reads through the same slot are serialized, so no two
// concurrent ReadItem calls share a slot. Items referencing each other through deduplication are independent reads,
// so there is no ordering requirement between workers. On any error, every
// file already written during this call is removed before the error is
// returned, so a failed unpack never leaves a partial extraction behind.
func UnpackConcurrent(r *Reader, destDir string, threadCount int, opts ...UnpackOption) error {
	if threadCount < 1 {
		return fmt.Errorf("%w: threadCount must be >= 1, got %d", ErrPack, threadCount)
	}

	var cfg unpackConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %q: %w", ErrPack, destDir, err)
	}

	itemCount := r.ItemCount()
	pool := pond.New(threadCount, itemCount, pond.Strategy(pond.Balanced()))

	var (
		mu       sync.Mutex
		firstErr error
		written  []string
		done     int64
		slotMu   = make([]sync.Mutex, threadCount)
	)
	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	recordWritten := func(path string) {
		mu.Lock()
		written = append(written, path)
		mu.Unlock()
	}

	for i := 0; i < itemCount; i++ {
		index := i
		slot := index % threadCount
		pool.Submit(func() {
			itemPath := r.ItemPath(index)
			slotMu[slot].Lock()
			data, err := r.ReadItem(slot, index, nil)
			slotMu[slot].Unlock()
			if err != nil {
				recordErr(err)
				return
			}
			dstPath, err := writeUnpackedFile(destDir, itemPath, data)
			if err != nil {
				recordErr(err)
				return
			}
			recordWritten(dstPath)
			if cfg.onItem != nil {
				cfg.onItem(index)
			}
			if cfg.printProgress {
				n := atomic.AddInt64(&done, 1)
				fmt.Printf("Unpacked file %s (%d/%d)\n", itemPath, n, itemCount)
			}
		})
	}
	pool.StopAndWait()

	if firstErr != nil {
		removeUnpackedFiles(written)
		return firstErr
	}
	return nil
}

func writeUnpackedFile(destDir, itemPath string, data []byte) (string, error) {
	dstPath := filepath.Join(destDir, sanitizeItemPath(itemPath))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: writing %q: %w", ErrPack, dstPath, err)
	}
	return dstPath, nil
}

// removeUnpackedFiles deletes every path in written, best-effort, used to
// clean up a partial extraction after an Unpack/UnpackConcurrent failure.
func removeUnpackedFiles(written []string) {
	for _, path := range written {
		os.Remove(path)
	}
}
