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
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// errWontFit is returned by codec.compress when the compressed form of src
// would not fit within dstCapacity. Callers treat this the same as any
// other compression failure: store the item uncompressed.
var errWontFit = errors.New("compressed data does not fit destination capacity")

// codec is the adapter over a concrete compression algorithm: compress into
// a capacity-bounded destination, decompress to an exact expected size.
type codec interface {
	id() uint8
	compress(src []byte, dstCapacity int) ([]byte, error)
	decompress(src []byte, expectedSize int) ([]byte, error)
}

// codecFor returns the high-ratio codec by default, or the fast codec when
// preferSpeed is set, matching the writer's -s / preferSpeed flag.
func codecFor(preferSpeed bool) codec {
	if preferSpeed {
		return fastCodec{}
	}
	return highRatioCodec{}
}

// codecByID resolves the codec recorded in a FileHeader's CodecID field.
func codecByID(id uint8) (codec, error) {
	switch id {
	case codecHighRatio:
		return highRatioCodec{}, nil
	case codecFast:
		return fastCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec id %d", ErrPack, id)
	}
}

// zstdEncoder and zstdDecoder are package-level and reused across calls.
// klauspost/compress/zstd documents EncodeAll/DecodeAll as safe for
// concurrent use, which is what lets every reader thread slot share them
// without locking.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// highRatioCodec is the default, maximum-compression codec (zstd).
type highRatioCodec struct{}

func (highRatioCodec) id() uint8 { return codecHighRatio }

func (highRatioCodec) compress(src []byte, dstCapacity int) ([]byte, error) {
	out := zstdEncoder.EncodeAll(src, make([]byte, 0, dstCapacity))
	if len(out) > dstCapacity {
		return nil, errWontFit
	}
	return out, nil
}

func (highRatioCodec) decompress(src []byte, expectedSize int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(src, make([]byte, 0, expectedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	if len(out) != expectedSize {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrDecompress, len(out), expectedSize)
	}
	return out, nil
}

// fastCodec is the speed-optimized codec (LZ4), selected by the writer's
// preferSpeed / -s option. It uses the block-level API rather than the
// streaming Reader/Writer, since Pack payloads are whole-item blocks, not
// streams (grounded on nabbar-golib/archive/compress, which introduces
// github.com/pierrec/lz4/v4 into the corpus via its streaming LZ4 branch;
// the same module also exports the block functions used here).
type fastCodec struct{}

func (fastCodec) id() uint8 { return codecFast }

func (fastCodec) compress(src []byte, dstCapacity int) ([]byte, error) {
	dst := make([]byte, dstCapacity)
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// CompressBlock returns n == 0 when the data is incompressible or
		// the destination is too small to hold the compressed form.
		return nil, errWontFit
	}
	return dst[:n], nil
}

func (fastCodec) decompress(src []byte, expectedSize int) ([]byte, error) {
	dst := make([]byte, expectedSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	if n != expectedSize {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrDecompress, n, expectedSize)
	}
	return dst, nil
}
