// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Matrix-file recording layout conventions.
const (
	headerSubdir  = "alignedData"
	rawSubdir     = "rawData"
	rawAmpSubdir  = "amplifierData"
	forcedRawName = "iEEG.mat"

	// seegTypeLabel is the signal-type sentinel marking physiological
	// sEEG channels in matrix-file headers. Matching is exact, on the
	// raw label: this path classifies by type label, not by unit, and
	// the two strategies are deliberately kept separate.
	seegTypeLabel = "SEEG"
)

// HeaderDecoder extracts the channel table (names and signal-type
// labels, parallel slices) from a matrix-file header. Implementations
// may fail on version-mismatched or malformed input; the reader treats
// any error as a signal to try the next backend in its chain.
type HeaderDecoder interface {
	Name() string
	DecodeHeader(path string) (names, types []string, err error)
}

// MatDirReader reads a matrix-file recording directory: a header file
// under alignedData/ and a raw-data file under rawData/amplifierData/.
// Header decoding falls back through an ordered backend chain; raw
// data is always HDF5.
//
// A backend returning an empty channel table is treated the same as a
// failing one. A genuinely zero-channel header is indistinguishable
// from a decode failure under this rule and ends as ErrIntegrity.
type MatDirReader struct {
	decoders []HeaderDecoder
	loadRaw  func(path string) (*rawMatrix, error)
	logger   *zap.Logger
}

// NewMatDirReader returns a reader with the production backend chain
// (hdf5, then mat5, then mat5compat) and the HDF5 raw loader. A nil
// logger falls back to a nop logger.
func NewMatDirReader(logger *zap.Logger) *MatDirReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatDirReader{
		decoders: []HeaderDecoder{NewHDF5Decoder(), NewMat5Decoder(), NewMat5CompatDecoder()},
		loadRaw:  loadHDF5Raw,
		logger:   logger,
	}
}

// Read parses the recording rooted at root into the canonical
// Recording.
func (r *MatDirReader) Read(root string) (*Recording, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("error reading recording root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	headerPath, err := r.resolveHeader(root)
	if err != nil {
		return nil, err
	}
	rawPath, err := r.resolveRaw(root)
	if err != nil {
		return nil, err
	}

	names, types, err := r.decodeHeader(headerPath)
	if err != nil {
		return nil, err
	}

	channels := make([]string, len(names))
	mask := make([]bool, len(names))
	var selected []int
	for i := range names {
		channels[i] = strings.ToUpper(names[i])
		mask[i] = types[i] == seegTypeLabel
		if mask[i] {
			selected = append(selected, i)
		}
	}
	r.logger.Debug("classified matrix-file channels",
		zap.String("header", headerPath),
		zap.Int("channels", len(names)),
		zap.Int("seeg", len(selected)))

	rawm, err := r.loadRaw(rawPath)
	if err != nil {
		return nil, err
	}
	rows, cols := rawm.data.Dims()
	// Headers come in two shapes: most list every raw row, trigger
	// line included as a non-SEEG channel; some list only the signal
	// lines. Both are valid, anything else is corrupt.
	if rows != len(names) && rows != len(names)+1 {
		return nil, fmt.Errorf("header lists %d channels but %s has %d raw rows: %w",
			len(names), rawPath, rows, ErrIntegrity)
	}
	if len(rawm.times) != cols {
		return nil, fmt.Errorf("time axis of %d samples does not match %d raw columns in %s: %w",
			len(rawm.times), cols, rawPath, ErrIntegrity)
	}

	// The last raw row is the trigger line by convention, stored as
	// floating point and rounded back to its integer codes.
	line := make([]int, cols)
	for j := 0; j < cols; j++ {
		line[j] = int(math.Round(rawm.data.At(rows-1, j)))
	}
	events, eventTimes, err := ExtractEvents(line, rawm.times)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawPath, err)
	}

	raw := &mat.Dense{}
	if len(selected) > 0 {
		data := make([]float64, len(selected)*cols)
		for k, i := range selected {
			copy(data[k*cols:(k+1)*cols], rawm.data.RawRowView(i))
		}
		raw = mat.NewDense(len(selected), cols, data)
	}

	seegNames := make([]string, len(selected))
	for k, i := range selected {
		seegNames[k] = channels[i]
	}

	return &Recording{
		SamplingRate:  rawm.samplingRate,
		Raw:           raw,
		ChannelNames:  seegNames,
		TriggerEvents: events,
		TriggerTimes:  eventTimes,
	}, nil
}

// decodeHeader runs the backend chain, logging each failure and
// stopping at the first backend that yields a non-empty channel table.
func (r *MatDirReader) decodeHeader(path string) ([]string, []string, error) {
	for _, dec := range r.decoders {
		names, types, err := dec.DecodeHeader(path)
		if err != nil {
			r.logger.Warn("header decode failed, trying next backend",
				zap.String("backend", dec.Name()),
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		if len(names) == 0 || len(types) == 0 {
			r.logger.Debug("backend returned an empty channel table",
				zap.String("backend", dec.Name()),
				zap.String("path", path))
			continue
		}
		if len(names) != len(types) {
			return nil, nil, fmt.Errorf("backend %s returned %d names but %d types for %s: %w",
				dec.Name(), len(names), len(types), path, ErrIntegrity)
		}
		r.logger.Debug("header decoded",
			zap.String("backend", dec.Name()),
			zap.String("path", path),
			zap.Int("channels", len(names)))
		return names, types, nil
	}
	return nil, nil, fmt.Errorf("no backend decoded a channel table from %s: %w", path, ErrIntegrity)
}

// resolveHeader expects exactly one file under alignedData/.
func (r *MatDirReader) resolveHeader(root string) (string, error) {
	dir := filepath.Join(root, headerSubdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("error listing header directory: %w", err)
	}
	if len(entries) != 1 {
		return "", fmt.Errorf("expected exactly one header file under %s, found %d: %w",
			dir, len(entries), ErrIntegrity)
	}
	return filepath.Join(dir, entries[0].Name()), nil
}

// resolveRaw expects one file under rawData/amplifierData/. Several
// candidates are narrowed deterministically to iEEG.mat with a logged
// warning rather than an error.
func (r *MatDirReader) resolveRaw(root string) (string, error) {
	dir := filepath.Join(root, rawSubdir, rawAmpSubdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("error listing raw data directory: %w", err)
	}
	switch len(entries) {
	case 0:
		return "", fmt.Errorf("no raw data file under %s: %w", dir, ErrIntegrity)
	case 1:
		return filepath.Join(dir, entries[0].Name()), nil
	}

	r.logger.Warn("multiple raw matrix files detected, forcing iEEG.mat",
		zap.String("dir", dir),
		zap.Int("count", len(entries)))
	path := filepath.Join(dir, forcedRawName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("ambiguous raw data directory %s has no %s: %w",
			dir, forcedRawName, ErrIntegrity)
	}
	return path, nil
}
