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
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/onetouchcopy/onetouchcopy/pkg/button"
	"github.com/onetouchcopy/onetouchcopy/pkg/helpers/syncutil"
	"github.com/onetouchcopy/onetouchcopy/pkg/led"
	"github.com/onetouchcopy/onetouchcopy/pkg/registry"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// FilesystemSource is the registry query the orchestrator consumes.
type FilesystemSource interface {
	Filesystems() []registry.FilesystemHandle
}

// Resolver turns a filesystem handle into the live operations used to
// mount and copy it.
type Resolver func(handle registry.FilesystemHandle) FilesystemOps

// Settings are the static parameters of an orchestrator.
type Settings struct {
	RsyncBin    string
	Destination string
	ButtonCode  uint16
	Debounce    time.Duration
}

// Orchestrator consumes button events and fans each qualifying press
// out into one copy task per filesystem. At most one batch is ever in
// flight; further presses are logged and ignored.
type Orchestrator struct {
	source    FilesystemSource
	resolve   Resolver
	indicator led.Indicator
	clock     clockwork.Clock
	settings  Settings

	inFlight  bool
	lastPress time.Time
	mu        syncutil.Mutex

	wg sync.WaitGroup
}

func NewOrchestrator(
	settings Settings,
	source FilesystemSource,
	resolve Resolver,
	indicator led.Indicator,
	clock clockwork.Clock,
) *Orchestrator {
	return &Orchestrator{
		settings:  settings,
		source:    source,
		resolve:   resolve,
		indicator: indicator,
		clock:     clock,
	}
}

// HandleEvent filters the event stream down to debounced releases of
// the copy button and starts a batch for each one. Non-qualifying
// events have no side effect.
func (o *Orchestrator) HandleEvent(ctx context.Context, event button.Event) {
	if !event.IsReleaseOf(o.settings.ButtonCode) {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.clock.Now()
	if !o.lastPress.IsZero() && now.Sub(o.lastPress) < o.settings.Debounce {
		log.Debug().Msg("button press debounced")
		return
	}
	o.lastPress = now

	if o.inFlight {
		log.Warn().Msg("copy process already in progress; ignoring input")
		return
	}

	handles := o.source.Filesystems()
	if len(handles) == 0 {
		log.Info().Msg("no filesystem found")
		return
	}

	o.inFlight = true
	o.wg.Add(1)
	go o.runBatch(ctx, handles)
}

// Stop waits for any in-flight batch to finish. Cancel the context
// passed to HandleEvent first to abort the batch.
func (o *Orchestrator) Stop() {
	o.wg.Wait()
}

// runBatch runs one copy task per filesystem concurrently and joins
// them as a unit. Individual task failures never abort siblings. The
// indicator blinks for the duration and is restored to steady on
// whichever way the batch ends.
func (o *Orchestrator) runBatch(ctx context.Context, handles []registry.FilesystemHandle) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	restore := o.indicator.Blink()
	defer restore()

	dest := trimTrailingSlashes(o.settings.Destination)

	group := new(errgroup.Group)
	for _, handle := range handles {
		task := NewTask(o.resolve(handle), o.settings.RsyncBin, dest, nil)
		group.Go(func() error {
			// Task.Run settles every failure internally; returning nil
			// keeps sibling tasks isolated from each other.
			task.Run(ctx)
			return nil
		})
	}
	_ = group.Wait()

	log.Info().Int("filesystems", len(handles)).Msg("copy batch finished")
}
