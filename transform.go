// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ReadTransformRaw reads a rigid-transform (.trm) file as stored: four
// whitespace-separated rows of three values, the first row being the
// translation and the remaining three the rotation.
func ReadTransformRaw(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening transform: %w", err)
	}
	defer f.Close()

	var values []float64
	rows := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s: transform row %d has %d values, expected 3", path, rows+1, len(fields))
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid transform value %q: %w", path, field, err)
			}
			values = append(values, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading transform: %w", err)
	}
	if rows != 4 {
		return nil, fmt.Errorf("%s: transform has %d rows, expected 4", path, rows)
	}
	return mat.NewDense(4, 3, values), nil
}

// ReadTransform reads a rigid-transform file and assembles it into a
// homogeneous 4x4 matrix, rotation in the upper-left block and the
// translation in the last column. With inverse set the transform is
// inverted before being returned.
func ReadTransform(path string, inverse bool) (*mat.Dense, error) {
	tr, err := ReadTransformRaw(path)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, tr.At(i+1, j))
		}
		out.Set(i, 3, tr.At(0, i))
	}
	out.Set(3, 3, 1)

	if inverse {
		var inv mat.Dense
		if err := inv.Inverse(out); err != nil {
			return nil, fmt.Errorf("%s: transform is not invertible: %w", path, err)
		}
		return &inv, nil
	}
	return out, nil
}
