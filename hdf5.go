// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/hdf5"
)

// hdf5Decoder decodes the channel table from a MAT v7.3 header, which
// is an HDF5 container. MATLAB stores a cell of strings as a dataset
// of object references, one per channel, each pointing at a uint16
// char-code vector; that is the primary layout here. Plain char
// matrices occur too, written transposed (char position varies along
// the first dimension, channel along the second).
type hdf5Decoder struct{}

// NewHDF5Decoder returns the MAT v7.3 (HDF5) header decoder.
func NewHDF5Decoder() HeaderDecoder { return hdf5Decoder{} }

func (hdf5Decoder) Name() string { return "hdf5" }

func (hdf5Decoder) DecodeHeader(path string) ([]string, []string, error) {
	names, err := readChannelStrings(path, "H/channels/name")
	if err != nil {
		return nil, nil, err
	}
	types, err := readChannelStrings(path, "H/channels/signalType")
	if err != nil {
		return nil, nil, err
	}
	return names, types, nil
}

// readChannelStrings reads one string per channel from the named
// dataset, trying the reference layout first and falling back to a
// dense char matrix.
func readChannelStrings(path, name string) ([]string, error) {
	strs, err := readReferencedStrings(path, name)
	if err == nil {
		return strs, nil
	}
	if !errors.Is(err, errNotReferenceLayout) {
		return nil, err
	}
	return readCharMatrixStrings(path, name)
}

// readCharMatrixStrings reads a dense matrix of uint16 character codes
// and assembles one string per column.
func readCharMatrixStrings(path, name string) ([]string, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("hdf5: error opening %s: %w", path, err)
	}
	defer f.Close()

	ds, err := f.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("hdf5: error opening dataset %s: %w", name, err)
	}
	defer ds.Close()

	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("hdf5: error reading extent of %s: %w", name, err)
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("hdf5: dataset %s has %d dimensions, expected 2", name, len(dims))
	}
	rows, cols := int(dims[0]), int(dims[1])
	if rows == 0 || cols == 0 {
		return nil, nil
	}

	codes := make([]uint16, rows*cols)
	if err := ds.Read(&codes); err != nil {
		return nil, fmt.Errorf("hdf5: error reading %s: %w", name, err)
	}
	return charColumnStrings(codes, rows, cols), nil
}

// charColumnStrings assembles strings column-wise from a row-major
// rows x cols buffer of char codes. MATLAB writes arrays transposed,
// so a char matrix of N strings of width W lands on disk as W x N:
// each column is one string.
func charColumnStrings(codes []uint16, rows, cols int) []string {
	out := make([]string, cols)
	for c := 0; c < cols; c++ {
		var sb strings.Builder
		for r := 0; r < rows; r++ {
			sb.WriteRune(rune(codes[r*cols+c]))
		}
		out[c] = strings.TrimRight(sb.String(), "\x00 ")
	}
	return out
}

// rawMatrix is the decoded raw-data container of the matrix-file
// layout: sampling rate, full time axis, and the sample matrix with
// one row per recorded line, the last row being the trigger line.
type rawMatrix struct {
	samplingRate float64
	times        []float64
	data         *mat.Dense
}

// loadHDF5Raw reads the raw-data container. Unlike the header there is
// no backend fallback on this path: the raw file is always HDF5.
func loadHDF5Raw(path string) (*rawMatrix, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("hdf5: error opening %s: %w", path, err)
	}
	defer f.Close()

	srate, err := readFloats(f, "srate")
	if err != nil {
		return nil, err
	}
	if len(srate) == 0 || srate[0] <= 0 {
		return nil, fmt.Errorf("hdf5: %s has no usable sampling rate", path)
	}

	times, err := readFloats(f, "time")
	if err != nil {
		return nil, err
	}

	ds, err := f.OpenDataset("raw")
	if err != nil {
		return nil, fmt.Errorf("hdf5: error opening dataset raw: %w", err)
	}
	defer ds.Close()
	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("hdf5: error reading extent of raw: %w", err)
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("hdf5: raw dataset has %d dimensions, expected 2", len(dims))
	}
	rows, cols := int(dims[0]), int(dims[1])
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("hdf5: raw dataset is empty (%dx%d)", rows, cols)
	}

	buf := make([]float64, rows*cols)
	if err := ds.Read(&buf); err != nil {
		return nil, fmt.Errorf("hdf5: error reading raw: %w", err)
	}

	return &rawMatrix{
		samplingRate: srate[0],
		times:        times,
		data:         mat.NewDense(rows, cols, buf),
	}, nil
}

// readFloats reads a scalar or vector float64 dataset, flattened.
func readFloats(f *hdf5.File, name string) ([]float64, error) {
	ds, err := f.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("hdf5: error opening dataset %s: %w", name, err)
	}
	defer ds.Close()

	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("hdf5: error reading extent of %s: %w", name, err)
	}
	n := 1
	for _, d := range dims {
		n *= int(d)
	}

	out := make([]float64, n)
	if err := ds.Read(&out); err != nil {
		return nil, fmt.Errorf("hdf5: error reading %s: %w", name, err)
	}
	return out, nil
}
