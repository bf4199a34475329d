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

package button

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReleaseOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{
			name:  "release of the copy button",
			event: Event{Type: EvKey, Code: BtnCopy, Value: KeyRelease},
			want:  true,
		},
		{
			name:  "press of the copy button",
			event: Event{Type: EvKey, Code: BtnCopy, Value: 1},
			want:  false,
		},
		{
			name:  "key repeat of the copy button",
			event: Event{Type: EvKey, Code: BtnCopy, Value: 2},
			want:  false,
		},
		{
			name:  "release of another button",
			event: Event{Type: EvKey, Code: 0x101, Value: KeyRelease},
			want:  false,
		},
		{
			name:  "non-key event with matching code",
			event: Event{Type: 0x03, Code: BtnCopy, Value: KeyRelease},
			want:  false,
		},
		{
			name:  "synchronization event",
			event: Event{},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.event.IsReleaseOf(BtnCopy))
		})
	}
}
