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

//go:build linux

package button

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const inputDevDir = "/dev/input"

// rawEvent mirrors the kernel's struct input_event on 64-bit targets.
type rawEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// Reader streams input events from one evdev device.
type Reader struct {
	file     *os.File
	events   chan Event
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Discover scans /dev/input/event* for the device advertising the
// given kernel device name and opens it.
func Discover(deviceName string) (*Reader, error) {
	entries, err := filepath.Glob(filepath.Join(inputDevDir, "event*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}

	for _, path := range entries {
		file, err := os.Open(path) //nolint:gosec // paths come from the glob above
		if err != nil {
			log.Debug().Str("path", path).Err(err).Msg("can't open input device")
			continue
		}

		name, err := deviceNameOf(file)
		if err != nil {
			log.Debug().Str("path", path).Err(err).Msg("can't read input device name")
			_ = file.Close()
			continue
		}

		if name == deviceName {
			log.Debug().Str("path", path).Str("name", name).Msg("found button input device")
			return newReader(file), nil
		}
		_ = file.Close()
	}

	return nil, fmt.Errorf("input device %q not found", deviceName)
}

// Open opens a specific evdev device node.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // device node path from config
	if err != nil {
		return nil, fmt.Errorf("failed to open input device: %w", err)
	}
	return newReader(file), nil
}

func newReader(file *os.File) *Reader {
	return &Reader{
		file:     file,
		events:   make(chan Event, 10),
		stopChan: make(chan struct{}),
	}
}

// Events is the unbounded stream of device events.
func (r *Reader) Events() <-chan Event {
	return r.events
}

// Start begins reading events from the device.
func (r *Reader) Start() {
	r.wg.Add(1)
	go r.readLoop()
}

// Stop closes the device, which unblocks the read loop, and waits for
// it to finish.
func (r *Reader) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		_ = r.file.Close()
		r.wg.Wait()
		close(r.events)
	})
}

func (r *Reader) readLoop() {
	defer r.wg.Done()

	for {
		var raw rawEvent
		if err := binary.Read(r.file, binary.NativeEndian, &raw); err != nil {
			select {
			case <-r.stopChan:
				// Closed by Stop; not an error.
			default:
				if errors.Is(err, io.EOF) {
					log.Debug().Msg("input device stream ended")
				} else {
					log.Error().Err(err).Msg("input device read failed")
				}
			}
			return
		}

		event := Event{Type: raw.Type, Code: raw.Code, Value: raw.Value}

		select {
		case r.events <- event:
		case <-r.stopChan:
			return
		}
	}
}

// deviceNameOf issues EVIOCGNAME against the open device.
func deviceNameOf(file *os.File) (string, error) {
	buf := make([]byte, 256)

	// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
	const iocRead = 2
	req := (uintptr(iocRead) << 30) | (uintptr(len(buf)) << 16) | ('E' << 8) | 0x06

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, file.Fd(), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", fmt.Errorf("EVIOCGNAME ioctl failed: %w", errno)
	}

	name := string(buf)
	if idx := strings.IndexByte(name, 0); idx >= 0 {
		name = name[:idx]
	}
	return name, nil
}
