// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package seegio normalizes raw intracranial electrophysiology (sEEG)
// recordings from heterogeneous acquisition formats into a common
// in-memory representation: sampling rate, a channel-by-sample signal
// matrix restricted to physiological sEEG channels, the matching
// channel names, and a discrete trigger event stream.
package seegio

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotDirectory is returned when a reader expecting a recording
	// directory is pointed at something else.
	ErrNotDirectory = errors.New("seegio: not a directory")

	// ErrIntegrity is returned when a recording violates the layout
	// contract of its format (missing or ambiguous files, undecodable
	// header, channel table inconsistent with the raw matrix).
	ErrIntegrity = errors.New("seegio: integrity violation")
)

// Recording is the canonical output of every reader, regardless of the
// acquisition format it came from. It holds no reference back to the
// source files.
type Recording struct {
	SamplingRate  float64    // Sampling frequency in Hz
	Raw           *mat.Dense // Signal matrix, one row per sEEG channel
	ChannelNames  []string   // Row labels of Raw, same order
	TriggerEvents []int      // Discrete event codes, time-ascending, never zero
	TriggerTimes  []float64  // Timestamp of each event, parallel to TriggerEvents
}

// ChannelTable is the intermediate channel inventory read from a
// format's metadata before classification. Names and Hints are
// parallel: Hints carries whatever the format records per channel
// (unit strings for vendor containers, type labels for matrix files).
type ChannelTable struct {
	Names []string
	Hints []string
}
