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

// Package registry keeps a live view of whether the one-touch-copy
// drive is present and which filesystems it exposes, reconciling the
// UDisks2 snapshot with the interface added/removed event streams.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/onetouchcopy/onetouchcopy/pkg/helpers/syncutil"
	"github.com/onetouchcopy/onetouchcopy/pkg/led"
	"github.com/onetouchcopy/onetouchcopy/pkg/udisks"
	"github.com/rs/zerolog/log"
)

// ObjectSource is the slice of the UDisks2 client the registry
// consumes: one snapshot call and the two event streams.
type ObjectSource interface {
	ManagedObjects(ctx context.Context) ([]udisks.Object, error)
	Added() <-chan udisks.AddedEvent
	Removed() <-chan udisks.RemovedEvent
}

// FilesystemHandle is a lightweight reference to one filesystem on the
// matched drive. Mount point and device are re-resolved live at use
// time; DeviceNode here is last-known accounting data only.
type FilesystemHandle struct {
	Path       dbus.ObjectPath
	DeviceNode string
}

// MatchedDrive is the in-memory record of the drive plugged into the
// one-touch-copy port. At most one exists at a time.
type MatchedDrive struct {
	Path           dbus.ObjectPath
	DeviceNode     string
	PartitionPaths []dbus.ObjectPath
}

// Registry owns the matched-drive and known-filesystem state. All
// mutation happens under one mutex so the snapshot and the two
// listeners never interleave writes.
type Registry struct {
	source    ObjectSource
	indicator led.Indicator
	wellKnown string

	matchedDrive     *MatchedDrive
	knownFilesystems map[dbus.ObjectPath]udisks.Object
	mu               syncutil.Mutex

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a registry matching drives whose symlinks contain
// wellKnown. The indicator is turned on while a drive is matched.
func New(source ObjectSource, indicator led.Indicator, wellKnown string) *Registry {
	return &Registry{
		source:           source,
		indicator:        indicator,
		wellKnown:        wellKnown,
		knownFilesystems: make(map[dbus.ObjectPath]udisks.Object),
		stopChan:         make(chan struct{}),
	}
}

// Start ingests the managed-objects snapshot and then begins consuming
// the event streams. Snapshot ingestion completes under the state lock
// before the listener goroutines are started, so no live event can
// interleave with it.
func (r *Registry) Start(ctx context.Context) error {
	r.indicator.Off()

	objects, err := r.source.ManagedObjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to get managed objects: %w", err)
	}

	r.mu.Lock()
	for i := range objects {
		r.populate(&objects[i])
	}
	r.mu.Unlock()

	r.wg.Add(2)
	go r.listenAdded()
	go r.listenRemoved()

	return nil
}

// Stop clears the matched state (turning the indicator off), cancels
// both listeners and waits for them to finish.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.setMatchedDrive(nil)
		r.mu.Unlock()

		close(r.stopChan)
		r.wg.Wait()
	})
}

// Filesystems returns one handle per partition of the matched drive,
// or nil if no drive is matched. The partition list of the matched
// drive is authoritative; the known-filesystem map only contributes
// last-known device nodes.
func (r *Registry) Filesystems() []FilesystemHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.matchedDrive == nil {
		return nil
	}

	handles := make([]FilesystemHandle, 0, len(r.matchedDrive.PartitionPaths))
	for _, path := range r.matchedDrive.PartitionPaths {
		handle := FilesystemHandle{Path: path}
		if obj, ok := r.knownFilesystems[path]; ok {
			handle.DeviceNode = obj.DeviceNode()
		}
		handles = append(handles, handle)
	}
	return handles
}

func (r *Registry) listenAdded() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			log.Debug().Msg("stopped listening for interfaces added events")
			return
		case event, ok := <-r.source.Added():
			if !ok {
				log.Debug().Msg("interfaces added stream closed")
				return
			}
			r.mu.Lock()
			r.populate(&event.Object)
			r.mu.Unlock()
		}
	}
}

func (r *Registry) listenRemoved() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			log.Debug().Msg("stopped listening for interfaces removed events")
			return
		case event, ok := <-r.source.Removed():
			if !ok {
				log.Debug().Msg("interfaces removed stream closed")
				return
			}
			r.mu.Lock()
			r.remove(&event)
			r.mu.Unlock()
		}
	}
}

// populate ingests one snapshot entry or added event. Caller holds the
// state lock.
func (r *Registry) populate(obj *udisks.Object) {
	kind := obj.Kind()
	isDrive := udisks.IsTargetDrive(obj.Symlinks(), r.wellKnown)

	// Objects that are neither the target drive nor a filesystem are
	// irrelevant to the daemon.
	if !isDrive && kind != udisks.KindFilesystem {
		return
	}

	devNode := obj.DeviceNode()

	if isDrive {
		if kind != udisks.KindPartitionedBlock {
			log.Warn().
				Str("device", devNode).
				Msg("found matching drive but it's not partitioned; nothing will be copied")
			return
		}
		r.setMatchedDrive(&MatchedDrive{
			Path:           obj.Path,
			DeviceNode:     devNode,
			PartitionPaths: obj.Partitions(),
		})
		log.Info().Str("device", devNode).Msg("found matching drive")
		return
	}

	r.knownFilesystems[obj.Path] = *obj
	log.Debug().Str("device", devNode).Msg("found filesystem")
}

// remove ingests one removed event. Caller holds the state lock.
func (r *Registry) remove(event *udisks.RemovedEvent) {
	kind := udisks.Classify(event.Interfaces)
	if !kind.IsBlockFamily() {
		return
	}

	if r.matchedDrive != nil && r.matchedDrive.Path == event.Path {
		devNode := r.matchedDrive.DeviceNode
		r.setMatchedDrive(nil)
		log.Info().Str("device", devNode).Msg("matching drive removed")
		return
	}

	delete(r.knownFilesystems, event.Path)
}

// setMatchedDrive updates the matched drive and its coupled side
// effects: the indicator tracks drive presence, and clearing the drive
// empties the known filesystems in the same state transition so stale
// entries never leak into a later lookup. Caller holds the state lock.
func (r *Registry) setMatchedDrive(drive *MatchedDrive) {
	r.matchedDrive = drive
	if drive != nil {
		r.indicator.On()
		return
	}
	r.indicator.Off()
	clear(r.knownFilesystems)
}
