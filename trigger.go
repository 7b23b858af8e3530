// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

import "fmt"

// ExtractEvents collapses a continuous integer-coded trigger line into
// a discrete event stream. A sample is kept only when its code differs
// from the previous sample (the leading edge of a run), and leading
// edges with code zero are dropped, zero being the idle sentinel. The
// returned times are the original timestamps of the kept samples, so
// they stay strictly increasing whenever times does.
//
// By construction the first sample is never a leading edge: a line that
// opens with a nonzero code and never changes yields no events. That
// matches the acquisition convention of a leading idle period and is
// relied on by existing pipelines; callers that cannot guarantee a
// leading idle sample will lose the opening code.
func ExtractEvents(line []int, times []float64) ([]int, []float64, error) {
	if len(line) != len(times) {
		return nil, nil, fmt.Errorf("trigger line has %d samples but time axis has %d", len(line), len(times))
	}

	var events []int
	var eventTimes []float64
	for i := 1; i < len(line); i++ {
		if line[i] == line[i-1] || line[i] == 0 {
			continue
		}
		events = append(events, line[i])
		eventTimes = append(eventTimes, times[i])
	}
	return events, eventTimes, nil
}
