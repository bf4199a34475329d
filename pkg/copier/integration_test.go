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

package copier

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/jonboulle/clockwork"
	"github.com/onetouchcopy/onetouchcopy/pkg/button"
	"github.com/onetouchcopy/onetouchcopy/pkg/registry"
	"github.com/onetouchcopy/onetouchcopy/pkg/udisks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const wellKnown = "/dev/qnap-one-touch-copy"

// eventSource feeds a real registry in tests.
type eventSource struct {
	snapshot []udisks.Object
	added    chan udisks.AddedEvent
	removed  chan udisks.RemovedEvent
}

func newEventSource(snapshot ...udisks.Object) *eventSource {
	return &eventSource{
		snapshot: snapshot,
		added:    make(chan udisks.AddedEvent, 10),
		removed:  make(chan udisks.RemovedEvent, 10),
	}
}

func (s *eventSource) ManagedObjects(_ context.Context) ([]udisks.Object, error) {
	return s.snapshot, nil
}

func (s *eventSource) Added() <-chan udisks.AddedEvent     { return s.added }
func (s *eventSource) Removed() <-chan udisks.RemovedEvent { return s.removed }

func testDriveObject(path dbus.ObjectPath, partitions ...dbus.ObjectPath) udisks.Object {
	return udisks.Object{
		Path: path,
		Interfaces: map[string]map[string]dbus.Variant{
			udisks.BlockInterface: {
				"Device":   dbus.MakeVariant([]byte("/dev/sda\x00")),
				"Symlinks": dbus.MakeVariant([][]byte{[]byte(wellKnown + "\x00")}),
			},
			udisks.PartitionTableInterface: {
				"Partitions": dbus.MakeVariant(partitions),
			},
		},
	}
}

func TestDriveRemovedMidCopy(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newEventSource(testDriveObject("/obj/sda", "/obj/sda1"))
	indicator := &recordingIndicator{}
	reg := registry.New(source, indicator, wellKnown)
	require.NoError(t, reg.Start(context.Background()))
	defer reg.Stop()

	fsMock := &mockFilesystem{mountPoint: t.TempDir(), device: "/dev/sda1"}

	orch := NewOrchestrator(
		Settings{
			RsyncBin:    writeScript(t, "sleep 30"),
			Destination: t.TempDir(),
			ButtonCode:  button.BtnCopy,
			Debounce:    500 * time.Millisecond,
		},
		reg,
		func(registry.FilesystemHandle) FilesystemOps { return fsMock },
		indicator,
		clockwork.NewFakeClock(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	orch.HandleEvent(ctx, pressOf(button.BtnCopy))

	require.Eventually(t, func() bool {
		orch.mu.Lock()
		defer orch.mu.Unlock()
		return orch.inFlight
	}, 2*time.Second, 5*time.Millisecond)

	// Pull the drive while the copy runs: the registry must reflect the
	// removal immediately, independent of the in-flight copy.
	source.removed <- udisks.RemovedEvent{
		Path:       "/obj/sda",
		Interfaces: []string{udisks.BlockInterface, udisks.PartitionTableInterface},
	}
	require.Eventually(t, func() bool {
		return reg.Filesystems() == nil
	}, 2*time.Second, 5*time.Millisecond)

	// The in-flight task must still reach a terminal state without
	// hanging once the batch is aborted.
	cancel()

	done := make(chan struct{})
	go func() {
		orch.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish after drive removal and cancellation")
	}

	assert.Nil(t, reg.Filesystems())
}
