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

package led

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledBase = "/sys/class/leds/qnap8528::usb"

func readControl(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, filepath.Join(ledBase, name))
	require.NoError(t, err)
	return string(data)
}

func TestOn(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := New(fs, "/sys/class/leds", "qnap8528::usb")

	l.On()

	assert.Equal(t, "none", readControl(t, fs, "trigger"))
	assert.Equal(t, "1", readControl(t, fs, "brightness"))
}

func TestOff(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := New(fs, "/sys/class/leds", "qnap8528::usb")

	l.Off()

	assert.Equal(t, "none", readControl(t, fs, "trigger"))
	assert.Equal(t, "0", readControl(t, fs, "brightness"))
}

func TestBlinkAndRestore(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := New(fs, "/sys/class/leds", "qnap8528::usb")

	restore := l.Blink()

	assert.Equal(t, "timer", readControl(t, fs, "trigger"))
	assert.Equal(t, "1", readControl(t, fs, "brightness"))
	assert.Equal(t, "200", readControl(t, fs, "delay_on"))
	assert.Equal(t, "200", readControl(t, fs, "delay_off"))

	restore()

	assert.Equal(t, "none", readControl(t, fs, "trigger"))
	assert.Equal(t, "1", readControl(t, fs, "brightness"))
}

func TestWriteFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	l := New(fs, "/sys/class/leds", "qnap8528::usb")

	// Hardware without the LED must not panic or error.
	l.On()
	l.Off()
	restore := l.Blink()
	restore()
}
