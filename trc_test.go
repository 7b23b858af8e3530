// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio_test

import (
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/openseeg/seegio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Calibration used by the fixture channels: a full-range 16-bit logical
// span against a symmetric physical span gives a conversion factor of
// exactly 1, so physical = digital - 32768.
const (
	trcTestLogicalMax    = 65535
	trcTestLogicalGround = 32768
	trcTestPhysicalMin   = -32768
	trcTestPhysicalMax   = 32768
)

type trcTestChannel struct {
	label    string
	unitCode int16
	samples  []uint16 // digital values
}

type trcTestTrigger struct {
	sample uint32
	code   uint16
}

// writeTRC emits a minimal Micromed System98 type-4 container: fixed
// header, zone descriptor table, ORDER/LABCOD/TRIGGER zones and the
// multiplexed 16-bit sample frames.
func writeTRC(t *testing.T, sf uint16, chans []trcTestChannel, trig []trcTestTrigger) string {
	t.Helper()

	n := len(chans)
	require.NotZero(t, n)
	sampleCount := len(chans[0].samples)

	orderStart := 416
	labcodStart := orderStart + 2*n
	trigStart := labcodStart + 128*n
	dataStart := trigStart + 6*(len(trig)+1)

	b := make([]byte, dataStart+sampleCount*n*2)
	b[175] = 4 // header type
	binary.LittleEndian.PutUint32(b[138:], uint32(dataStart))
	binary.LittleEndian.PutUint16(b[142:], uint16(n))
	binary.LittleEndian.PutUint16(b[146:], sf)
	binary.LittleEndian.PutUint16(b[148:], 2) // bytes per sample

	zones := []struct {
		name          string
		start, length int
	}{
		{"ORDER", orderStart, 2 * n},
		{"LABCOD", labcodStart, 128 * n},
		{"NOTE", 0, 0},
		{"FLAGS", 0, 0},
		{"TRONCA", 0, 0},
		{"IMPED_B", 0, 0},
		{"IMPED_E", 0, 0},
		{"MONTAGE", 0, 0},
		{"COMPRESS", 0, 0},
		{"AVERAGE", 0, 0},
		{"HISTORY", 0, 0},
		{"DVIDEO", 0, 0},
		{"EVENT A", 0, 0},
		{"EVENT B", 0, 0},
		{"TRIGGER", trigStart, 6 * (len(trig) + 1)},
	}
	for i, z := range zones {
		off := 176 + i*16
		copy(b[off:off+8], z.name)
		binary.LittleEndian.PutUint32(b[off+8:], uint32(z.start))
		binary.LittleEndian.PutUint32(b[off+12:], uint32(z.length))
	}

	for i := range chans {
		binary.LittleEndian.PutUint16(b[orderStart+2*i:], uint16(i))
	}

	for i, ch := range chans {
		off := labcodStart + 128*i
		copy(b[off+2:off+8], ch.label)
		binary.LittleEndian.PutUint32(b[off+14:], 0) // logical min
		binary.LittleEndian.PutUint32(b[off+18:], trcTestLogicalMax)
		binary.LittleEndian.PutUint32(b[off+22:], trcTestLogicalGround)
		binary.LittleEndian.PutUint32(b[off+26:], uint32(int32(trcTestPhysicalMin)))
		binary.LittleEndian.PutUint32(b[off+30:], uint32(int32(trcTestPhysicalMax)))
		binary.LittleEndian.PutUint16(b[off+34:], uint16(ch.unitCode))
	}

	for i, ev := range trig {
		off := trigStart + 6*i
		binary.LittleEndian.PutUint32(b[off:], ev.sample)
		binary.LittleEndian.PutUint16(b[off+4:], ev.code)
	}
	binary.LittleEndian.PutUint32(b[trigStart+6*len(trig):], 0xFFFFFFFF)

	for c, ch := range chans {
		require.Len(t, ch.samples, sampleCount)
		for s, v := range ch.samples {
			binary.LittleEndian.PutUint16(b[dataStart+(s*n+c)*2:], v)
		}
	}

	path := filepath.Join(t.TempDir(), "rec.trc")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestTRCReaderRead(t *testing.T) {
	path := writeTRC(t, 512,
		[]trcTestChannel{
			{label: "a 1", unitCode: 0, samples: []uint16{32769, 32770, 32771}},
			{label: "a2", unitCode: 0, samples: []uint16{32758, 32768, 32778}},
			{label: "ecg", unitCode: 1, samples: []uint16{40000, 40001, 40002}},
		},
		[]trcTestTrigger{
			{sample: 256, code: 0},
			{sample: 512, code: 5},
			{sample: 768, code: 5},
			{sample: 1024, code: 0},
			{sample: 1280, code: 3},
		})

	rec, err := seegio.NewTRCReader(nil, nil).Read(path)
	require.NoError(t, err)

	assert.Equal(t, 512.0, rec.SamplingRate)

	// Names are uppercased and whitespace-stripped; the ECG channel
	// reports millivolts and is excluded by the microvolt expectation.
	assert.Equal(t, []string{"A1", "A2"}, rec.ChannelNames)

	rows, cols := rec.Raw.Dims()
	require.Equal(t, len(rec.ChannelNames), rows)
	require.Equal(t, 3, cols)
	assert.InDelta(t, 1.0, rec.Raw.At(0, 0), 1e-9)
	assert.InDelta(t, 2.0, rec.Raw.At(0, 1), 1e-9)
	assert.InDelta(t, 3.0, rec.Raw.At(0, 2), 1e-9)
	assert.InDelta(t, -10.0, rec.Raw.At(1, 0), 1e-9)
	assert.InDelta(t, 0.0, rec.Raw.At(1, 1), 1e-9)
	assert.InDelta(t, 10.0, rec.Raw.At(1, 2), 1e-9)

	// The trigger zone stream goes through the shared extractor:
	// repeats collapse to leading edges, zeros drop.
	assert.Equal(t, []int{5, 3}, rec.TriggerEvents)
	require.Len(t, rec.TriggerTimes, 2)
	assert.InDelta(t, 1.0, rec.TriggerTimes[0], 1e-9)
	assert.InDelta(t, 2.5, rec.TriggerTimes[1], 1e-9)
}

func TestTRCReaderCustomClassifier(t *testing.T) {
	path := writeTRC(t, 256,
		[]trcTestChannel{
			{label: "a1", unitCode: 0, samples: []uint16{32768, 32768}},
			{label: "ecg", unitCode: 1, samples: []uint16{32768, 32768}},
		},
		nil)

	// Keep only the last channel, regardless of units.
	classifier := seegio.ClassifierFunc(func(names, hints []string, expectedUnit string) []bool {
		mask := make([]bool, len(names))
		mask[len(mask)-1] = true
		return mask
	})

	rec, err := seegio.NewTRCReader(classifier, nil).Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ECG"}, rec.ChannelNames)
	rows, _ := rec.Raw.Dims()
	assert.Equal(t, 1, rows)
}

func TestTRCReaderNotFound(t *testing.T) {
	_, err := seegio.NewTRCReader(nil, nil).Read(filepath.Join(t.TempDir(), "missing.trc"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTRCReaderBadHeaderType(t *testing.T) {
	path := writeTRC(t, 512,
		[]trcTestChannel{{label: "a1", unitCode: 0, samples: []uint16{32768}}},
		nil)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[175] = 3
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = seegio.NewTRCReader(nil, nil).Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header type")
}
