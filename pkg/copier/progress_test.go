// One Touch Copy
// Copyright (c) 2026 The One Touch Copy Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of One Touch Copy.
//
// One Touch Copy is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// One Touch Copy is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with One Touch Copy.  If not, see <http://www.gnu.org/licenses/>.

package copier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collectProgress() (*progressParser, *[]int) {
	var seen []int
	parser := &progressParser{report: func(percent int) {
		seen = append(seen, percent)
	}}
	return parser, &seen
}

func TestProgressParserMonotonic(t *testing.T) {
	t.Parallel()

	parser, seen := collectProgress()
	writer := &progressWriter{parser: parser}

	// Regressions (40 after 55) and duplicates must be suppressed.
	_, err := writer.Write([]byte("10%\r55%\r40%\r100%\r"))
	assert.NoError(t, err)
	writer.Flush()

	assert.Equal(t, []int{10, 55, 100}, *seen)
}

func TestProgressParserIgnoresNoise(t *testing.T) {
	t.Parallel()

	parser, seen := collectProgress()

	parser.parseLine("sending incremental file list")
	parser.parseLine("")
	parser.parseLine("  1,024 100")

	assert.Empty(t, *seen)
}

func TestProgressParserDuplicates(t *testing.T) {
	t.Parallel()

	parser, seen := collectProgress()

	parser.parseLine("        32,768  50%    1.2MB/s")
	parser.parseLine("        32,768  50%    1.1MB/s")
	parser.parseLine("        65,536  51%    1.1MB/s")

	assert.Equal(t, []int{50, 51}, *seen)
}

func TestProgressWriterSplitsAcrossWrites(t *testing.T) {
	t.Parallel()

	parser, seen := collectProgress()
	writer := &progressWriter{parser: parser}

	// A progress line split over two writes must still parse once.
	_, _ = writer.Write([]byte("  12,345  2"))
	_, _ = writer.Write([]byte("5%\r  23,456  50%\r"))

	assert.Equal(t, []int{25, 50}, *seen)
}

func TestProgressWriterFlushParsesTail(t *testing.T) {
	t.Parallel()

	parser, seen := collectProgress()
	writer := &progressWriter{parser: parser}

	_, _ = writer.Write([]byte("55%\r100%"))
	assert.Equal(t, []int{55}, *seen)

	writer.Flush()
	assert.Equal(t, []int{55, 100}, *seen)
}

func TestTrimTrailingSlashes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/media/usb", trimTrailingSlashes("/media/usb/"))
	assert.Equal(t, "/media/usb", trimTrailingSlashes("/media/usb///"))
	assert.Equal(t, "/media/usb", trimTrailingSlashes("/media/usb"))
	assert.Empty(t, trimTrailingSlashes("/"))
}
