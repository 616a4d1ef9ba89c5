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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTempFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
	return path
}

func TestPack_SortsByLengthThenLexicographic(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "a.txt", []byte("aaaaaaaaaa")), ItemPath: "zzz"},
		{FilePath: writeTempFile(t, dir, "b.txt", []byte("bbbbbbbbbb")), ItemPath: "ab"},
		{FilePath: writeTempFile(t, dir, "c.txt", []byte("cccccccccc")), ItemPath: "aa"},
		{FilePath: writeTempFile(t, dir, "d.txt", []byte("dddddddddd")), ItemPath: "a"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.1); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r, err := Open(archivePath, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var got []string
	for i := 0; i < r.ItemCount(); i++ {
		got = append(got, r.ItemPath(i))
	}
	want := []string{"a", "aa", "ab", "zzz"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("item order (-want, +got):\n%s", diff)
	}
}

func TestPack_DeduplicatesIdenticalPayloads(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("duplicate content "), 64)

	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "one.bin", content), ItemPath: "one"},
		{FilePath: writeTempFile(t, dir, "two.bin", content), ItemPath: "two"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.1); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r, err := Open(archivePath, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	i1, ok := r.FindIndex("one")
	if !ok {
		t.Fatalf("FindIndex(one): not found")
	}
	i2, ok := r.FindIndex("two")
	if !ok {
		t.Fatalf("FindIndex(two): not found")
	}

	if r.IsItemReference(i1) == r.IsItemReference(i2) {
		t.Fatalf("expected exactly one of the two identical items to be a reference, got %v and %v",
			r.IsItemReference(i1), r.IsItemReference(i2))
	}

	d1, err := r.ReadItem(0, i1, nil)
	if err != nil {
		t.Fatalf("ReadItem(one): %v", err)
	}
	d2, err := r.ReadItem(0, i2, nil)
	if err != nil {
		t.Fatalf("ReadItem(two): %v", err)
	}
	if diff := cmp.Diff(content, d1); diff != "" {
		t.Errorf("item one content (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(content, d2); diff != "" {
		t.Errorf("item two content (-want, +got):\n%s", diff)
	}
}

func TestPack_DeduplicatesOnlyByteEqualPayloads(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "a.bin", []byte("AAAAAAAAAAAAAAAAAAAA")), ItemPath: "a"},
		{FilePath: writeTempFile(t, dir, "b.bin", []byte("BBBBBBBBBBBBBBBBBBBB")), ItemPath: "b"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.1); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r, err := Open(archivePath, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	ia, _ := r.FindIndex("a")
	ib, _ := r.FindIndex("b")
	if r.IsItemReference(ia) || r.IsItemReference(ib) {
		t.Errorf("same-size, different-content items must not be deduplicated")
	}
}

func TestPack_CompressesHighlyRedundantData(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("0"), 4096)
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "zeros.bin", data), ItemPath: "zeros"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.1); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r, err := Open(archivePath, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	index, ok := r.FindIndex("zeros")
	if !ok {
		t.Fatalf("FindIndex(zeros): not found")
	}
	if r.ItemZipSize(index) == 0 {
		t.Errorf("expected highly redundant data to be compressed")
	}
	if r.ItemZipSize(index) >= r.ItemDataSize(index) {
		t.Errorf("ZipSize %d should be smaller than DataSize %d", r.ItemZipSize(index), r.ItemDataSize(index))
	}

	out, err := r.ReadItem(0, index, nil)
	if err != nil {
		t.Fatalf("ReadItem: %v", err)
	}
	if diff := cmp.Diff(data, out); diff != "" {
		t.Errorf("round-tripped data (-want, +got):\n%s", diff)
	}
}

func TestPack_HighThresholdStoresRawWhenNotWorthwhile(t *testing.T) {
	dir := t.TempDir()
	// Mildly compressible text; with a threshold this high the writer should
	// fall back to storing it raw rather than accepting a marginal gain.
	data := []byte(strings.Repeat("go lang ", 4) + "unique tail bytes that do not repeat at all 12345")
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "text.bin", data), ItemPath: "text"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.99); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r, err := Open(archivePath, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	index, _ := r.FindIndex("text")
	if r.ItemZipSize(index) != 0 {
		t.Errorf("expected raw storage under an unreachable threshold, got ZipSize=%d", r.ItemZipSize(index))
	}
}

func TestPack_RejectsEmptyItem(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "empty.bin", nil), ItemPath: "empty"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	err := Pack(archivePath, pairs, 0.1)
	if !errors.Is(err, ErrBadDataSize) {
		t.Fatalf("Pack: got %v, want ErrBadDataSize", err)
	}
	if _, statErr := os.Stat(archivePath); statErr == nil {
		t.Errorf("archive file should have been removed after a failed pack")
	}
}

func TestPack_RejectsOversizedPath(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "a.bin", []byte("data")), ItemPath: strings.Repeat("x", 256)},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	err := Pack(archivePath, pairs, 0.1)
	if !errors.Is(err, ErrBadDataSize) {
		t.Fatalf("Pack: got %v, want ErrBadDataSize", err)
	}
}

func TestPack_RemovesArchiveOnFailure(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: filepath.Join(dir, "does-not-exist.bin"), ItemPath: "missing"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.1); err == nil {
		t.Fatalf("Pack: expected an error for a missing source file")
	}
	if _, err := os.Stat(archivePath); err == nil {
		t.Errorf("archive file should have been removed after a failed pack")
	}
}

func TestPack_DedupesFilePathsKeepingFirstItemPath(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, "shared.bin", []byte("shared content"))
	pairs := []FilePair{
		{FilePath: src, ItemPath: "first"},
		{FilePath: src, ItemPath: "second"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.1); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r, err := Open(archivePath, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.ItemCount() != 1 {
		t.Fatalf("ItemCount = %d, want 1", r.ItemCount())
	}
	if got := r.ItemPath(0); got != "first" {
		t.Errorf("ItemPath(0) = %q, want %q", got, "first")
	}
}

func TestPack_PreferSpeedRecordsFastCodec(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "a.bin", bytes.Repeat([]byte("ab"), 2048)), ItemPath: "a"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.1, WithPreferSpeed(true)); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	header, err := ReadHeader(archivePath)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.CodecID != codecFast {
		t.Errorf("CodecID = %d, want %d (fast)", header.CodecID, codecFast)
	}
}

func TestPack_RecordsDataVersion(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "a.bin", []byte("content")), ItemPath: "a"},
	}

	archivePath := filepath.Join(dir, "archive.pack")
	if err := Pack(archivePath, pairs, 0.1, WithDataVersion(7)); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if _, err := Open(archivePath, 1, WithReaderDataVersion(8)); !errors.Is(err, ErrBadDataVersion) {
		t.Fatalf("Open with mismatched data version: got %v, want ErrBadDataVersion", err)
	}

	r, err := Open(archivePath, 1, WithReaderDataVersion(7))
	if err != nil {
		t.Fatalf("Open with matching data version: %v", err)
	}
	defer r.Close()
}

func TestPack_OnItemCallback(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "a.bin", []byte("a")), ItemPath: "a"},
		{FilePath: writeTempFile(t, dir, "b.bin", []byte("bb")), ItemPath: "bb"},
	}

	var seen []uint64
	archivePath := filepath.Join(dir, "archive.pack")
	err := Pack(archivePath, pairs, 0.1, WithOnItem(func(index uint64) {
		seen = append(seen, index)
	}))
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if diff := cmp.Diff([]uint64{0, 1}, seen); diff != "" {
		t.Errorf("onItem indices (-want, +got):\n%s", diff)
	}
}

func TestPack_RejectsZipThresholdOutOfRange(t *testing.T) {
	dir := t.TempDir()
	pairs := []FilePair{
		{FilePath: writeTempFile(t, dir, "a.bin", []byte("a")), ItemPath: "a"},
	}
	archivePath := filepath.Join(dir, "archive.pack")

	if err := Pack(archivePath, pairs, -0.1); !errors.Is(err, ErrBadDataSize) {
		t.Errorf("Pack(-0.1): got %v, want ErrBadDataSize", err)
	}
	if err := Pack(archivePath, pairs, 1.1); !errors.Is(err, ErrBadDataSize) {
		t.Errorf("Pack(1.1): got %v, want ErrBadDataSize", err)
	}
}
