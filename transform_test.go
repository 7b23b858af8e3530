// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openseeg/seegio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const trmFixture = "10 20 30\n1 0 0\n0 1 0\n0 0 1\n"

func writeTRM(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "native_to_scanner.trm")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadTransformRaw(t *testing.T) {
	tr, err := seegio.ReadTransformRaw(writeTRM(t, trmFixture))
	require.NoError(t, err)

	rows, cols := tr.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 10.0, tr.At(0, 0))
	assert.Equal(t, 1.0, tr.At(1, 0))
}

func TestReadTransform(t *testing.T) {
	tr, err := seegio.ReadTransform(writeTRM(t, trmFixture), false)
	require.NoError(t, err)

	want := mat.NewDense(4, 4, []float64{
		1, 0, 0, 10,
		0, 1, 0, 20,
		0, 0, 1, 30,
		0, 0, 0, 1,
	})
	assert.True(t, mat.EqualApprox(want, tr, 1e-12))
}

func TestReadTransformInverse(t *testing.T) {
	path := writeTRM(t, trmFixture)

	tr, err := seegio.ReadTransform(path, false)
	require.NoError(t, err)
	inv, err := seegio.ReadTransform(path, true)
	require.NoError(t, err)

	var prod mat.Dense
	prod.Mul(tr, inv)
	eye := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	assert.True(t, mat.EqualApprox(eye, &prod, 1e-9))
}

func TestReadTransformBadShape(t *testing.T) {
	_, err := seegio.ReadTransform(writeTRM(t, "1 2 3\n4 5 6\n"), false)
	require.Error(t, err)
}
