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
	"bytes"
	"regexp"
	"strconv"
)

var percentRegex = regexp.MustCompile(`(\d+)%`)

// progressParser extracts percentages from rsync's progress output and
// reports them only when they strictly increase, suppressing the
// duplicate and decreasing noise rsync emits while files settle.
type progressParser struct {
	report  func(percent int)
	current int
}

func (p *progressParser) parseLine(line string) {
	match := percentRegex.FindStringSubmatch(line)
	if match == nil {
		return
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return
	}
	if value > p.current {
		p.current = value
		if p.report != nil {
			p.report(value)
		}
	}
}

// progressWriter splits rsync's self-overwriting progress stream on
// carriage returns and feeds each chunk to the parser. The tail after
// the last delimiter is parsed by Flush once the stream ends.
type progressWriter struct {
	parser *progressParser
	buf    bytes.Buffer
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		idx := bytes.IndexByte(data, '\r')
		if idx < 0 {
			break
		}
		w.parser.parseLine(string(data[:idx]))
		w.buf.Next(idx + 1)
	}
	return len(p), nil
}

func (w *progressWriter) Flush() {
	if w.buf.Len() > 0 {
		w.parser.parseLine(w.buf.String())
		w.buf.Reset()
	}
}
