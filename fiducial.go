// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Column positions in a 3D Slicer fiducial (.fcsv) record.
const (
	fcsvColX     = 1
	fcsvColY     = 2
	fcsvColZ     = 3
	fcsvColLabel = 11
)

// Fiducial is one labelled point from a 3D Slicer fiducial file.
type Fiducial struct {
	Label   string
	X, Y, Z float64
}

// ReadFiducials reads the labelled coordinates from a 3D Slicer .fcsv
// markup file. Header lines start with '#' and are skipped.
func ReadFiducials(path string) ([]Fiducial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening fiducial file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]Fiducial, 0, len(records))
	for i, rec := range records {
		if len(rec) <= fcsvColLabel {
			return nil, fmt.Errorf("%s: record %d has %d fields, expected at least %d", path, i+1, len(rec), fcsvColLabel+1)
		}
		var fid Fiducial
		fid.Label = rec[fcsvColLabel]
		for _, c := range []struct {
			col int
			dst *float64
		}{
			{fcsvColX, &fid.X},
			{fcsvColY, &fid.Y},
			{fcsvColZ, &fid.Z},
		} {
			v, err := strconv.ParseFloat(rec[c.col], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: record %d has invalid coordinate %q: %w", path, i+1, rec[c.col], err)
			}
			*c.dst = v
		}
		out = append(out, fid)
	}
	return out, nil
}
