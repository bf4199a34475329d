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

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/onetouchcopy/onetouchcopy/pkg/config"
	"github.com/onetouchcopy/onetouchcopy/pkg/helpers"
	"github.com/onetouchcopy/onetouchcopy/pkg/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultLogDir = "/var/log/onetouchcopy"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	destination := flag.String(
		"destination",
		"",
		"directory where to copy the content of the USB disk; takes priority over "+config.DestEnv,
	)
	cfgPath := flag.String(
		"config",
		"/etc/onetouchcopy.toml",
		"configuration file path",
	)
	verbose := flag.Bool(
		"verbose",
		false,
		"enable debug logging",
	)
	foreground := flag.Bool(
		"foreground",
		false,
		"also log to stderr",
	)
	flag.Parse()

	var logWriters []io.Writer
	if *foreground {
		logWriters = []io.Writer{os.Stderr}
	}

	if err := helpers.InitLogging(defaultLogDir, config.LogFile, logWriters); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg, err := config.NewConfig(*cfgPath, config.BaseDefaults)
	if err != nil {
		return err
	}

	if *destination != "" {
		cfg.SetDestination(*destination)
	}
	if *verbose {
		cfg.SetDebugLogging(true)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.Destination() == "" {
		return errors.New(
			"destination path not set; use the -destination option or the " +
				config.DestEnv + " environment variable",
		)
	}

	if err := helpers.EnsureDestination(cfg.Destination(), cfg.Owner(), cfg.Group()); err != nil {
		return err
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	stopSvc, err := service.Start(cfg)
	if err != nil {
		log.Error().Err(err).Msg("error starting service")
		return fmt.Errorf("error starting service: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := stopSvc(); err != nil {
		log.Error().Err(err).Msg("error stopping service")
		return err
	}

	return nil
}
