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

// Package udisks classifies UDisks2 objects and wraps the D-Bus calls
// the daemon needs: the managed-object snapshot, the interface
// added/removed event streams and per-filesystem mount operations.
package udisks

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	Service = "org.freedesktop.UDisks2"

	managerPath = "/org/freedesktop/UDisks2"

	BlockInterface          = "org.freedesktop.UDisks2.Block"
	FilesystemInterface     = "org.freedesktop.UDisks2.Filesystem"
	PartitionTableInterface = "org.freedesktop.UDisks2.PartitionTable"

	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"
	propertiesInterface    = "org.freedesktop.DBus.Properties"

	deviceBusyErrorName = "org.freedesktop.UDisks2.Error.DeviceBusy"
)

// Kind is the classification of a UDisks2 object derived from the set
// of interfaces it exposes.
type Kind int

const (
	KindUnclassified Kind = iota
	KindBlock
	KindFilesystem
	KindPartitionedBlock
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindFilesystem:
		return "filesystem"
	case KindPartitionedBlock:
		return "partitioned_block"
	case KindUnclassified:
		return "unclassified"
	default:
		return "unclassified"
	}
}

// IsBlockFamily reports whether the kind is backed by the Block
// interface, i.e. anything other than unclassified.
func (k Kind) IsBlockFamily() bool {
	return k == KindBlock || k == KindFilesystem || k == KindPartitionedBlock
}

// Classify maps a set of interface names to a Kind. A partition table
// takes precedence over a filesystem, which takes precedence over a
// plain block device.
func Classify(interfaceNames []string) Kind {
	hasBlock := false
	hasFS := false
	hasPartitionTable := false

	for _, name := range interfaceNames {
		switch name {
		case BlockInterface:
			hasBlock = true
		case FilesystemInterface:
			hasFS = true
		case PartitionTableInterface:
			hasPartitionTable = true
		}
	}

	switch {
	case hasPartitionTable:
		return KindPartitionedBlock
	case hasFS:
		return KindFilesystem
	case hasBlock:
		return KindBlock
	default:
		return KindUnclassified
	}
}

// IsTargetDrive reports whether a block object's symlink set contains
// the well-known device path. Symlink entries arrive as byte-strings
// with a trailing NUL which must be trimmed before comparison.
func IsTargetDrive(symlinks []string, wellKnown string) bool {
	for _, link := range symlinks {
		if strings.TrimRight(link, "\x00") == wellKnown {
			return true
		}
	}
	return false
}

// Object is a transient snapshot or event payload: one UDisks2 object
// path with the property bags of the interfaces present on it. It is
// not retained beyond registry ingestion.
type Object struct {
	Interfaces map[string]map[string]dbus.Variant
	Path       dbus.ObjectPath
}

// Kind classifies the object from its interface set.
func (o *Object) Kind() Kind {
	names := make([]string, 0, len(o.Interfaces))
	for name := range o.Interfaces {
		names = append(names, name)
	}
	return Classify(names)
}

// DeviceNode returns the block device path (e.g. "/dev/sda1") with the
// trailing NUL byte removed, or "" if absent.
func (o *Object) DeviceNode() string {
	props, ok := o.Interfaces[BlockInterface]
	if !ok {
		return ""
	}
	if device, ok := props["Device"]; ok {
		if devicePath, ok := device.Value().([]byte); ok && len(devicePath) > 0 {
			return strings.TrimRight(string(devicePath), "\x00")
		}
	}
	return ""
}

// Symlinks returns the block object's udev symlinks as raw strings.
// Trailing NULs are left in place; IsTargetDrive trims them.
func (o *Object) Symlinks() []string {
	props, ok := o.Interfaces[BlockInterface]
	if !ok {
		return nil
	}
	symlinks, ok := props["Symlinks"]
	if !ok {
		return nil
	}
	raw, ok := symlinks.Value().([][]byte)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(raw))
	for _, link := range raw {
		result = append(result, string(link))
	}
	return result
}

// Partitions returns the ordered partition object paths of a
// partitioned block object.
func (o *Object) Partitions() []dbus.ObjectPath {
	props, ok := o.Interfaces[PartitionTableInterface]
	if !ok {
		return nil
	}
	partitions, ok := props["Partitions"]
	if !ok {
		return nil
	}
	paths, ok := partitions.Value().([]dbus.ObjectPath)
	if !ok {
		return nil
	}
	return paths
}

// AddedEvent is one InterfacesAdded signal.
type AddedEvent struct {
	Object Object
}

// RemovedEvent is one InterfacesRemoved signal.
type RemovedEvent struct {
	Path       dbus.ObjectPath
	Interfaces []string
}

// IsDeviceBusy reports whether err is the UDisks2 "device busy" D-Bus
// error returned when unmounting a filesystem the OS still has open.
func IsDeviceBusy(err error) bool {
	var dbusErr dbus.Error
	if !errors.As(err, &dbusErr) {
		return false
	}
	return dbusErr.Name == deviceBusyErrorName
}
