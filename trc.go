// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Offsets into the fixed part of a Micromed System98 type-4 header.
const (
	trcOffDataStart    = 138 // uint32, file offset of the first sample frame
	trcOffChannelCount = 142 // uint16
	trcOffSamplingRate = 146 // uint16, Hz
	trcOffSampleWidth  = 148 // uint16, bytes per stored sample
	trcOffHeaderType   = 175 // uint8, must be 4
	trcZoneTableOff    = 176 // 15 zone descriptors of 16 bytes each
	trcZoneCount       = 15
	trcHeaderSize      = trcZoneTableOff + trcZoneCount*16
	trcElectrodeSize   = 128 // one record in the LABCOD zone
)

// trcTriggerEnd terminates the TRIGGER zone entry list.
const trcTriggerEnd = 0xFFFFFFFF

// TRCReader reads Micromed TRC containers, the vendor binary format of
// the acquisition systems feeding this pipeline. Channel membership is
// decided by the injected classifier from the per-channel unit strings,
// with microvolts as the expected signal unit. Decode failures are
// fatal; there is no fallback chain for this format.
type TRCReader struct {
	classifier   ChannelClassifier
	expectedUnit string
	logger       *zap.Logger
}

// NewTRCReader returns a reader using the given classifier and logger.
// A nil classifier falls back to UnitClassifier, a nil logger to a nop
// logger.
func NewTRCReader(classifier ChannelClassifier, logger *zap.Logger) *TRCReader {
	if classifier == nil {
		classifier = UnitClassifier()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TRCReader{
		classifier:   classifier,
		expectedUnit: "uV",
		logger:       logger,
	}
}

// Read parses the TRC container at path into the canonical Recording.
func (r *TRCReader) Read(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening trace: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("error opening trace: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory, expected a TRC file", path)
	}

	hdr, err := parseTRCHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	table := hdr.channelTable()
	mask := r.classifier.Classify(table.Names, table.Hints, r.expectedUnit)
	var selected []int
	for i, keep := range mask {
		if keep {
			selected = append(selected, i)
		}
	}
	r.logger.Debug("classified trc channels",
		zap.String("path", path),
		zap.Int("channels", len(table.Names)),
		zap.Int("seeg", len(selected)))

	line, lineTimes, err := hdr.readTriggerLine(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	events, eventTimes, err := ExtractEvents(line, lineTimes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	raw, err := hdr.readSignals(f, info.Size(), selected)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	names := make([]string, len(selected))
	for i, idx := range selected {
		names[i] = table.Names[idx]
	}

	return &Recording{
		SamplingRate:  hdr.samplingRate,
		Raw:           raw,
		ChannelNames:  names,
		TriggerEvents: events,
		TriggerTimes:  eventTimes,
	}, nil
}

type trcZone struct {
	start  uint32
	length uint32
}

type trcElectrode struct {
	label         string
	unit          string
	logicalMin    int32
	logicalMax    int32
	logicalGround int32
	physicalMin   int32
	physicalMax   int32
}

type trcHeader struct {
	dataStart    uint32
	channelCount int
	samplingRate float64
	sampleWidth  int
	zones        map[string]trcZone
	electrodes   []trcElectrode
}

func parseTRCHeader(f io.ReadSeeker) (*trcHeader, error) {
	b := make([]byte, trcHeaderSize)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to header: %w", err)
	}
	if _, err := io.ReadFull(f, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	if b[trcOffHeaderType] != 4 {
		return nil, fmt.Errorf("unsupported TRC header type %d", b[trcOffHeaderType])
	}

	hdr := &trcHeader{
		dataStart:    binary.LittleEndian.Uint32(b[trcOffDataStart:]),
		channelCount: int(binary.LittleEndian.Uint16(b[trcOffChannelCount:])),
		samplingRate: float64(binary.LittleEndian.Uint16(b[trcOffSamplingRate:])),
		sampleWidth:  int(binary.LittleEndian.Uint16(b[trcOffSampleWidth:])),
		zones:        make(map[string]trcZone, trcZoneCount),
	}
	if hdr.samplingRate <= 0 {
		return nil, fmt.Errorf("invalid sampling rate %v", hdr.samplingRate)
	}
	switch hdr.sampleWidth {
	case 1, 2, 4:
	default:
		return nil, fmt.Errorf("unsupported sample width %d", hdr.sampleWidth)
	}

	for i := 0; i < trcZoneCount; i++ {
		d := b[trcZoneTableOff+i*16:]
		name := strings.TrimRight(string(d[:8]), "\x00 ")
		hdr.zones[name] = trcZone{
			start:  binary.LittleEndian.Uint32(d[8:]),
			length: binary.LittleEndian.Uint32(d[12:]),
		}
	}

	if err := hdr.readElectrodes(f); err != nil {
		return nil, err
	}
	return hdr, nil
}

// readElectrodes resolves the per-channel metadata: the ORDER zone maps
// each acquired channel to a record in the LABCOD electrode zone.
func (hdr *trcHeader) readElectrodes(f io.ReadSeeker) error {
	order, ok := hdr.zones["ORDER"]
	if !ok {
		return fmt.Errorf("missing ORDER zone")
	}
	labcod, ok := hdr.zones["LABCOD"]
	if !ok {
		return fmt.Errorf("missing LABCOD zone")
	}

	ob := make([]byte, 2*hdr.channelCount)
	if _, err := f.Seek(int64(order.start), io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to ORDER zone: %w", err)
	}
	if _, err := io.ReadFull(f, ob); err != nil {
		return fmt.Errorf("error reading ORDER zone: %w", err)
	}

	eb := make([]byte, trcElectrodeSize)
	hdr.electrodes = make([]trcElectrode, hdr.channelCount)
	for c := 0; c < hdr.channelCount; c++ {
		idx := binary.LittleEndian.Uint16(ob[2*c:])
		pos := int64(labcod.start) + int64(idx)*trcElectrodeSize
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return fmt.Errorf("error seeking to electrode %d: %w", idx, err)
		}
		if _, err := io.ReadFull(f, eb); err != nil {
			return fmt.Errorf("error reading electrode %d: %w", idx, err)
		}

		// Electrode record layout: status(0), type(1), positive input
		// label(2:8), negative input label(8:14), logical min/max/ground
		// (14,18,22), physical min/max (26,30), unit code (34).
		hdr.electrodes[c] = trcElectrode{
			label:         strings.TrimRight(string(eb[2:8]), "\x00 "),
			unit:          trcUnit(int16(binary.LittleEndian.Uint16(eb[34:]))),
			logicalMin:    int32(binary.LittleEndian.Uint32(eb[14:])),
			logicalMax:    int32(binary.LittleEndian.Uint32(eb[18:])),
			logicalGround: int32(binary.LittleEndian.Uint32(eb[22:])),
			physicalMin:   int32(binary.LittleEndian.Uint32(eb[26:])),
			physicalMax:   int32(binary.LittleEndian.Uint32(eb[30:])),
		}
	}
	return nil
}

// channelTable builds the classification input: names uppercased with
// all whitespace stripped, units as decoded strings.
func (hdr *trcHeader) channelTable() ChannelTable {
	table := ChannelTable{
		Names: make([]string, hdr.channelCount),
		Hints: make([]string, hdr.channelCount),
	}
	for i, e := range hdr.electrodes {
		table.Names[i] = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(e.label), " ", ""))
		table.Hints[i] = e.unit
	}
	return table
}

// readTriggerLine decodes the TRIGGER zone into the container's single
// event-label stream and its time axis in seconds.
func (hdr *trcHeader) readTriggerLine(f io.ReadSeeker) ([]int, []float64, error) {
	zone, ok := hdr.zones["TRIGGER"]
	if !ok {
		return nil, nil, fmt.Errorf("missing TRIGGER zone")
	}

	b := make([]byte, zone.length)
	if _, err := f.Seek(int64(zone.start), io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("error seeking to TRIGGER zone: %w", err)
	}
	if _, err := io.ReadFull(f, b); err != nil {
		return nil, nil, fmt.Errorf("error reading TRIGGER zone: %w", err)
	}

	var line []int
	var times []float64
	for off := 0; off+6 <= len(b); off += 6 {
		sample := binary.LittleEndian.Uint32(b[off:])
		if sample == trcTriggerEnd {
			break
		}
		line = append(line, int(binary.LittleEndian.Uint16(b[off+4:])))
		times = append(times, float64(sample)/hdr.samplingRate)
	}
	return line, times, nil
}

// readSignals extracts the sample vectors of the selected channels from
// the multiplexed data area and stacks them row-wise in selection
// order.
func (hdr *trcHeader) readSignals(f io.ReadSeeker, fileSize int64, selected []int) (*mat.Dense, error) {
	frameSize := hdr.channelCount * hdr.sampleWidth
	if frameSize == 0 {
		return nil, fmt.Errorf("header describes no channels")
	}
	if fileSize < int64(hdr.dataStart) {
		return nil, fmt.Errorf("data start %d beyond end of file", hdr.dataStart)
	}
	sampleCount := int((fileSize - int64(hdr.dataStart)) / int64(frameSize))
	if sampleCount == 0 {
		return nil, fmt.Errorf("no sample frames after data start %d", hdr.dataStart)
	}

	b := make([]byte, sampleCount*frameSize)
	if _, err := f.Seek(int64(hdr.dataStart), io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to sample data: %w", err)
	}
	if _, err := io.ReadFull(f, b); err != nil {
		return nil, fmt.Errorf("error reading sample data: %w", err)
	}

	data := make([]float64, len(selected)*sampleCount)
	for row, ch := range selected {
		e := hdr.electrodes[ch]
		factor := 0.0
		if span := e.logicalMax - e.logicalMin + 1; span != 0 {
			factor = float64(e.physicalMax-e.physicalMin) / float64(span)
		}
		for t := 0; t < sampleCount; t++ {
			off := (t*hdr.channelCount + ch) * hdr.sampleWidth
			var digital int64
			switch hdr.sampleWidth {
			case 1:
				digital = int64(b[off])
			case 2:
				digital = int64(binary.LittleEndian.Uint16(b[off:]))
			case 4:
				digital = int64(binary.LittleEndian.Uint32(b[off:]))
			}
			data[row*sampleCount+t] = float64(digital-int64(e.logicalGround)) * factor
		}
	}

	if len(selected) == 0 {
		// mat.NewDense rejects empty shapes; an empty selection still
		// needs a well-formed zero-row recording.
		return &mat.Dense{}, nil
	}
	return mat.NewDense(len(selected), sampleCount, data), nil
}

// trcUnit decodes the Micromed per-electrode unit code.
func trcUnit(code int16) string {
	switch code {
	case -1:
		return "nV"
	case 0:
		return "uV"
	case 1:
		return "mV"
	case 2:
		return "V"
	case 100:
		return "%"
	case 101:
		return "bpm"
	case 102:
		return "dimensionless"
	default:
		return ""
	}
}
