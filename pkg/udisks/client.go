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

package udisks

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

// noUserInteraction are the options passed to every Mount/Unmount call
// so UDisks2 never blocks on a polkit prompt.
var noUserInteraction = map[string]dbus.Variant{
	"auth.no_user_interaction": dbus.MakeVariant(true),
}

// Client is a connection to the UDisks2 service. After Start it demuxes
// the ObjectManager signal stream into typed added/removed channels.
type Client struct {
	conn     *dbus.Conn
	added    chan AddedEvent
	removed  chan RemovedEvent
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Connect opens the system bus and verifies it is usable.
func Connect() (*Client, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system D-Bus: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing bus connection. The caller keeps
// ownership of the connection.
func NewClient(conn *dbus.Conn) *Client {
	return &Client{
		conn:     conn,
		added:    make(chan AddedEvent, 10),
		removed:  make(chan RemovedEvent, 10),
		stopChan: make(chan struct{}),
	}
}

// Start subscribes to the UDisks2 InterfacesAdded and InterfacesRemoved
// signals and begins demuxing them. Must be called before the snapshot
// is taken so no event between the two is lost.
func (c *Client) Start() error {
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(managerPath),
		dbus.WithMatchInterface(objectManagerInterface),
		dbus.WithMatchMember("InterfacesAdded"),
	); err != nil {
		return fmt.Errorf("failed to add match for InterfacesAdded: %w", err)
	}

	if err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(managerPath),
		dbus.WithMatchInterface(objectManagerInterface),
		dbus.WithMatchMember("InterfacesRemoved"),
	); err != nil {
		return fmt.Errorf("failed to add match for InterfacesRemoved: %w", err)
	}

	signalChan := make(chan *dbus.Signal, 10)
	c.conn.Signal(signalChan)

	c.wg.Add(1)
	go c.demuxSignals(signalChan)

	return nil
}

// Stop cancels the demux goroutine and closes the event channels.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
		close(c.added)
		close(c.removed)
	})
}

// Added is the stream of InterfacesAdded events.
func (c *Client) Added() <-chan AddedEvent {
	return c.added
}

// Removed is the stream of InterfacesRemoved events.
func (c *Client) Removed() <-chan RemovedEvent {
	return c.removed
}

// ManagedObjects calls GetManagedObjects and returns every object the
// service currently exposes.
func (c *Client) ManagedObjects(ctx context.Context) ([]Object, error) {
	obj := c.conn.Object(Service, managerPath)

	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := obj.CallWithContext(ctx, objectManagerInterface+".GetManagedObjects", 0)
	if err := call.Store(&managed); err != nil {
		return nil, fmt.Errorf("GetManagedObjects failed: %w", err)
	}

	objects := make([]Object, 0, len(managed))
	for path, interfaces := range managed {
		objects = append(objects, Object{Path: path, Interfaces: interfaces})
	}
	return objects, nil
}

func (c *Client) demuxSignals(signalChan chan *dbus.Signal) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		case signal := <-signalChan:
			if signal == nil {
				return
			}

			switch signal.Name {
			case objectManagerInterface + ".InterfacesAdded":
				c.handleInterfacesAdded(signal)
			case objectManagerInterface + ".InterfacesRemoved":
				c.handleInterfacesRemoved(signal)
			}
		}
	}
}

func (c *Client) handleInterfacesAdded(signal *dbus.Signal) {
	if len(signal.Body) < 2 {
		return
	}

	objectPath, ok := signal.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}

	interfaces, ok := signal.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}

	event := AddedEvent{Object: Object{Path: objectPath, Interfaces: interfaces}}

	select {
	case c.added <- event:
	case <-c.stopChan:
	}
}

func (c *Client) handleInterfacesRemoved(signal *dbus.Signal) {
	if len(signal.Body) < 2 {
		return
	}

	objectPath, ok := signal.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}

	interfaces, ok := signal.Body[1].([]string)
	if !ok {
		return
	}

	event := RemovedEvent{Path: objectPath, Interfaces: interfaces}

	select {
	case c.removed <- event:
	case <-c.stopChan:
	}
}

// Filesystem returns a live proxy for one filesystem object. Properties
// are resolved on every call because they can change between detection
// and use.
func (c *Client) Filesystem(path dbus.ObjectPath) *Filesystem {
	return &Filesystem{conn: c.conn, path: path}
}

// Filesystem is a proxy for the mount operations of one UDisks2
// filesystem object.
type Filesystem struct {
	conn *dbus.Conn
	path dbus.ObjectPath
}

func (f *Filesystem) Path() dbus.ObjectPath {
	return f.path
}

// MountPoint returns the filesystem's current first mount point, or ""
// if it is not mounted.
func (f *Filesystem) MountPoint(ctx context.Context) (string, error) {
	obj := f.conn.Object(Service, f.path)

	var variant dbus.Variant
	call := obj.CallWithContext(ctx, propertiesInterface+".Get", 0,
		FilesystemInterface, "MountPoints")
	if err := call.Store(&variant); err != nil {
		return "", fmt.Errorf("failed to get MountPoints for %s: %w", f.path, err)
	}

	mountPoints, ok := variant.Value().([][]byte)
	if !ok || len(mountPoints) == 0 {
		return "", nil
	}

	return trimNul(mountPoints[0]), nil
}

// Mount mounts the filesystem without interactive authentication and
// returns the mount path. An empty path means UDisks2 refused the
// mount without reporting an error.
func (f *Filesystem) Mount(ctx context.Context) (string, error) {
	obj := f.conn.Object(Service, f.path)

	var mountPath string
	call := obj.CallWithContext(ctx, FilesystemInterface+".Mount", 0, noUserInteraction)
	if err := call.Store(&mountPath); err != nil {
		return "", fmt.Errorf("failed to mount %s: %w", f.path, err)
	}

	log.Debug().Str("path", string(f.path)).Str("mount_path", mountPath).Msg("mounted filesystem")
	return mountPath, nil
}

// Unmount unmounts the filesystem without interactive authentication.
func (f *Filesystem) Unmount(ctx context.Context) error {
	obj := f.conn.Object(Service, f.path)

	call := obj.CallWithContext(ctx, FilesystemInterface+".Unmount", 0, noUserInteraction)
	if call.Err != nil {
		return fmt.Errorf("failed to unmount %s: %w", f.path, call.Err)
	}

	log.Debug().Str("path", string(f.path)).Msg("unmounted filesystem")
	return nil
}

// Device returns the filesystem's block device path.
func (f *Filesystem) Device(ctx context.Context) (string, error) {
	obj := f.conn.Object(Service, f.path)

	var variant dbus.Variant
	call := obj.CallWithContext(ctx, propertiesInterface+".Get", 0,
		BlockInterface, "Device")
	if err := call.Store(&variant); err != nil {
		return "", fmt.Errorf("failed to get Device for %s: %w", f.path, err)
	}

	device, ok := variant.Value().([]byte)
	if !ok {
		return "", nil
	}

	return trimNul(device), nil
}

func trimNul(raw []byte) string {
	s := string(raw)
	for len(s) > 0 && s[len(s)-1] == '\x00' {
		s = s[:len(s)-1]
	}
	return s
}
