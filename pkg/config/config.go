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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/onetouchcopy/onetouchcopy/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1

	CfgEnv   = "OTC_CFG"
	DestEnv  = "OTC_DEST"
	OwnerEnv = "OTC_OWNER"
	GroupEnv = "OTC_GROUP"

	CfgFile = "onetouchcopy.toml"
	LogFile = "onetouchcopy.log"
)

type Values struct {
	Copy         Copy   `toml:"copy"`
	Drive        Drive  `toml:"drive"`
	Button       Button `toml:"button"`
	Led          Led    `toml:"led"`
	ConfigSchema int    `toml:"config_schema"`
	DebugLogging bool   `toml:"debug_logging"`
}

type Copy struct {
	Destination string `toml:"destination"`
	Owner       string `toml:"owner,omitempty"`
	Group       string `toml:"group,omitempty"`
	RsyncBin    string `toml:"rsync_bin"`
}

type Drive struct {
	// Symlink is the udev-provided device path identifying the drive
	// plugged into the one-touch-copy port.
	Symlink string `toml:"symlink"`
}

type Button struct {
	DeviceName string `toml:"device_name"`
	Code       uint16 `toml:"code"`
	DebounceMs int    `toml:"debounce_ms"`
}

type Led struct {
	SysfsPath string `toml:"sysfs_path"`
	Name      string `toml:"name"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Copy: Copy{
		RsyncBin: "rsync",
	},
	Drive: Drive{
		Symlink: "/dev/qnap-one-touch-copy",
	},
	Button: Button{
		DeviceName: "qnap8528",
		Code:       258, // BTN_2
		DebounceMs: 500,
	},
	Led: Led{
		SysfsPath: "/sys/class/leds",
		Name:      "qnap8528::usb",
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads configuration from disk, creating a default config
// file if none exists. The OTC_CFG environment variable overrides the
// given path, and OTC_DEST overrides the destination from the file.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(cfgPath string, defaults Values) (*Instance, error) {
	if env := os.Getenv(CfgEnv); env != "" {
		log.Debug().Msgf("env config path: %s", env)
		cfgPath = env
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.applyEnv()

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	newVals := c.defaults
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	c.vals = newVals

	return nil
}

func (c *Instance) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	if err := os.MkdirAll(filepath.Dir(c.cfgPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv overlays environment variable overrides on the loaded
// values. Env vars win over the config file but lose to CLI flags,
// which are applied later via the setters.
func (c *Instance) applyEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dest := os.Getenv(DestEnv); dest != "" {
		c.vals.Copy.Destination = dest
	}
	if owner := os.Getenv(OwnerEnv); owner != "" {
		c.vals.Copy.Owner = owner
	}
	if group := os.Getenv(GroupEnv); group != "" {
		c.vals.Copy.Group = group
	}
}

func (c *Instance) Destination() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Copy.Destination
}

func (c *Instance) SetDestination(dest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Copy.Destination = dest
}

func (c *Instance) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Copy.Owner
}

func (c *Instance) Group() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Copy.Group
}

func (c *Instance) RsyncBin() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Copy.RsyncBin == "" {
		return c.defaults.Copy.RsyncBin
	}
	return c.vals.Copy.RsyncBin
}

func (c *Instance) DriveSymlink() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Drive.Symlink
}

func (c *Instance) ButtonDeviceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Button.DeviceName
}

func (c *Instance) ButtonCode() uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Button.Code
}

func (c *Instance) ButtonDebounce() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Button.DebounceMs) * time.Millisecond
}

func (c *Instance) LedSysfsPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Led.SysfsPath
}

func (c *Instance) LedName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Led.Name
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}
