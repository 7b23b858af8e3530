// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

import "strings"

// ChannelClassifier decides which channels carry physiological sEEG
// signal. Implementations must be pure and deterministic and return a
// mask with exactly one entry per name; hints is parallel to names and
// carries per-channel unit strings, expectedUnit is the unit a signal
// channel is expected to report (may be empty).
//
// The contact-name matching classifier used in production pipelines is
// an external collaborator; UnitClassifier below is the minimal
// unit-based strategy the vendor binary path needs.
type ChannelClassifier interface {
	Classify(names, hints []string, expectedUnit string) []bool
}

// ClassifierFunc adapts a plain function to the ChannelClassifier
// interface.
type ClassifierFunc func(names, hints []string, expectedUnit string) []bool

// Classify calls f.
func (f ClassifierFunc) Classify(names, hints []string, expectedUnit string) []bool {
	return f(names, hints, expectedUnit)
}

// UnitClassifier marks a channel as sEEG when its unit hint equals the
// expected unit, compared case-insensitively after trimming whitespace.
// An empty expected unit accepts every channel.
func UnitClassifier() ChannelClassifier {
	return ClassifierFunc(func(names, hints []string, expectedUnit string) []bool {
		mask := make([]bool, len(names))
		for i := range names {
			if expectedUnit == "" {
				mask[i] = true
				continue
			}
			var hint string
			if i < len(hints) {
				hint = strings.TrimSpace(hints[i])
			}
			mask[i] = strings.EqualFold(hint, expectedUnit)
		}
		return mask
	})
}
