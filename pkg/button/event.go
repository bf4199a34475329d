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

// Package button reads the hardware copy button as an unbounded
// sequence of kernel input events.
package button

const (
	// EvKey is the kernel input event type for key/button events.
	EvKey = 0x01

	// KeyRelease is the event value for a key being released.
	KeyRelease = 0

	// BtnCopy is the default event code of the one-touch-copy button
	// (BTN_2 in the kernel's input-event-codes).
	BtnCopy = 0x102
)

// Event is one record from the input device.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// IsReleaseOf reports whether the event is a key-release of the given
// button code. Events of any other kind do not qualify.
func (e Event) IsReleaseOf(code uint16) bool {
	return e.Type == EvKey && e.Code == code && e.Value == KeyRelease
}
