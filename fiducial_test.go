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
)

const fcsvFixture = `# Markups fiducial file version = 4.10
# CoordinateSystem = 0
# columns = id,x,y,z,ow,ox,oy,oz,vis,sel,lock,label,desc,associatedNodeID
vtkMRMLMarkupsFiducialNode_0,12.5,-4.25,33.0,0,0,0,1,1,1,0,AC,,vtkMRMLScalarVolumeNode1
vtkMRMLMarkupsFiducialNode_1,-8.0,1.5,-20.75,0,0,0,1,1,1,0,PC,,vtkMRMLScalarVolumeNode1
`

func TestReadFiducials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.fcsv")
	require.NoError(t, os.WriteFile(path, []byte(fcsvFixture), 0o644))

	fids, err := seegio.ReadFiducials(path)
	require.NoError(t, err)
	require.Len(t, fids, 2)

	assert.Equal(t, "AC", fids[0].Label)
	assert.Equal(t, 12.5, fids[0].X)
	assert.Equal(t, -4.25, fids[0].Y)
	assert.Equal(t, 33.0, fids[0].Z)

	assert.Equal(t, "PC", fids[1].Label)
	assert.Equal(t, -8.0, fids[1].X)
}

func TestReadFiducialsShortRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.fcsv")
	require.NoError(t, os.WriteFile(path, []byte("a,1,2,3\n"), 0o644))

	_, err := seegio.ReadFiducials(path)
	require.Error(t, err)
}
