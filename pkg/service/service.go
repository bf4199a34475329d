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

// Package service wires the daemon together: UDisks2 client, device
// registry, button reader and copy orchestrator.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/onetouchcopy/onetouchcopy/pkg/button"
	"github.com/onetouchcopy/onetouchcopy/pkg/config"
	"github.com/onetouchcopy/onetouchcopy/pkg/copier"
	"github.com/onetouchcopy/onetouchcopy/pkg/led"
	"github.com/onetouchcopy/onetouchcopy/pkg/registry"
	"github.com/onetouchcopy/onetouchcopy/pkg/udisks"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Start brings the daemon up and returns a stop function that tears
// everything down in reverse order, waiting for all owned tasks so no
// subprocess or mount is left dangling.
func Start(cfg *config.Instance) (func() error, error) {
	indicator := led.New(afero.NewOsFs(), cfg.LedSysfsPath(), cfg.LedName())

	client, err := udisks.Connect()
	if err != nil {
		return nil, err
	}
	if err := client.Start(); err != nil {
		return nil, fmt.Errorf("failed to subscribe to UDisks2 events: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	reg := registry.New(client, indicator, cfg.DriveSymlink())
	if err := reg.Start(ctx); err != nil {
		cancel()
		client.Stop()
		return nil, fmt.Errorf("failed to start device registry: %w", err)
	}

	reader, err := button.Discover(cfg.ButtonDeviceName())
	if err != nil {
		cancel()
		reg.Stop()
		client.Stop()
		return nil, err
	}
	reader.Start()

	orch := copier.NewOrchestrator(
		copier.Settings{
			RsyncBin:    cfg.RsyncBin(),
			Destination: cfg.Destination(),
			ButtonCode:  cfg.ButtonCode(),
			Debounce:    cfg.ButtonDebounce(),
		},
		reg,
		func(handle registry.FilesystemHandle) copier.FilesystemOps {
			return client.Filesystem(handle.Path)
		},
		indicator,
		clockwork.NewRealClock(),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range reader.Events() {
			orch.HandleEvent(ctx, event)
		}
	}()

	log.Info().Msg("service started")

	stop := func() error {
		reader.Stop()
		wg.Wait()
		cancel()
		orch.Stop()
		reg.Stop()
		client.Stop()
		log.Info().Msg("service stopped")
		return nil
	}

	return stop, nil
}
