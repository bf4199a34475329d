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

// Package led drives a sysfs LED as the daemon's status indicator.
// Writes are best-effort: hardware without the LED only logs at debug.
package led

import (
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	blinkDelayOn  = "200"
	blinkDelayOff = "200"
)

// Indicator is the status-indicator capability consumed by the device
// registry and the copy orchestrator.
type Indicator interface {
	On()
	Off()
	// Blink switches the indicator to blinking and returns a restore
	// function that must be called to bring it back to steady on.
	Blink() func()
}

// Led writes to /sys/class/leds/<name>/{trigger,brightness,...}.
type Led struct {
	fs   afero.Fs
	base string
}

// New returns an Led rooted at sysfsPath (normally /sys/class/leds)
// for the named LED device.
func New(fs afero.Fs, sysfsPath, name string) *Led {
	return &Led{
		fs:   fs,
		base: filepath.Join(sysfsPath, name),
	}
}

func (l *Led) On() {
	l.write("trigger", "none")
	l.write("brightness", "1")
}

func (l *Led) Off() {
	l.write("trigger", "none")
	l.write("brightness", "0")
}

func (l *Led) Blink() func() {
	l.write("trigger", "timer")
	l.write("brightness", "1")
	l.write("delay_on", blinkDelayOn)
	l.write("delay_off", blinkDelayOff)
	return l.On
}

func (l *Led) write(filename, content string) {
	file := filepath.Join(l.base, filename)
	if err := afero.WriteFile(l.fs, file, []byte(content), 0o644); err != nil {
		log.Debug().Str("file", file).Msg("can't write to LED control file")
		return
	}
	log.Debug().Str("file", file).Str("content", content).Msg("wrote LED control file")
}
