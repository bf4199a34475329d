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

// Package copier turns button presses into supervised batches of
// per-filesystem copy tasks with idempotent mount/unmount semantics.
package copier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/onetouchcopy/onetouchcopy/pkg/helpers/syncutil"
	"github.com/onetouchcopy/onetouchcopy/pkg/udisks"
	"github.com/rs/zerolog/log"
)

// unmountTimeout bounds the cleanup unmount, which runs detached from
// the (possibly already cancelled) task context.
const unmountTimeout = 30 * time.Second

// Status is the lifecycle state of one copy task. Terminal states do
// not transition further.
type Status int

const (
	StatusPending Status = iota
	StatusMounting
	StatusCopying
	StatusUnmounting
	StatusDone
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusMounting:
		return "mounting"
	case StatusCopying:
		return "copying"
	case StatusUnmounting:
		return "unmounting"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FilesystemOps is the slice of a UDisks2 filesystem object a copy
// task needs. All properties are resolved live at use time.
type FilesystemOps interface {
	MountPoint(ctx context.Context) (string, error)
	Mount(ctx context.Context) (string, error)
	Unmount(ctx context.Context) error
	Device(ctx context.Context) (string, error)
}

// FilesystemUnmountableError means the filesystem could not be brought
// to a mounted state.
type FilesystemUnmountableError struct {
	Device string
}

func (e *FilesystemUnmountableError) Error() string {
	return fmt.Sprintf("couldn't mount filesystem located at %s", e.Device)
}

// DestinationUnwritableError means the copy destination directory
// could not be created.
type DestinationUnwritableError struct {
	Dest string
}

func (e *DestinationUnwritableError) Error() string {
	return fmt.Sprintf("unable to create destination directory %s", e.Dest)
}

// Task copies the content of one filesystem to the destination. A task
// is run once and is not reusable.
type Task struct {
	fs       FilesystemOps
	rsyncBin string
	dest     string
	src      string

	progressFn func(percent int)

	status         Status
	progress       int
	alreadyMounted bool
	mounted        bool
	mu             syncutil.Mutex
}

// NewTask creates a copy task for one filesystem. progressFn, if not
// nil, observes each strictly-increasing progress percentage.
func NewTask(fs FilesystemOps, rsyncBin, dest string, progressFn func(int)) *Task {
	return &Task{
		fs:         fs,
		rsyncBin:   rsyncBin,
		dest:       dest,
		status:     StatusPending,
		progressFn: progressFn,
	}
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Task) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Run drives the task through its whole lifecycle. Failures are logged
// and settle the task in a terminal state; they are never propagated
// to sibling tasks. Cancellation unwinds through the same cleanup
// phase before settling in Cancelled.
func (t *Task) Run(ctx context.Context) {
	err := t.run(ctx)

	t.setStatus(StatusUnmounting)
	t.cleanup()

	switch {
	case err == nil:
		t.setStatus(StatusDone)
		log.Info().Msgf("copy%s finished", t.logSuffix())
	case errors.Is(err, context.Canceled):
		t.setStatus(StatusCancelled)
		log.Info().Msgf("copy%s cancelled", t.logSuffix())
	default:
		t.setStatus(StatusFailed)
		var unmountable *FilesystemUnmountableError
		var unwritable *DestinationUnwritableError
		if errors.As(err, &unmountable) || errors.As(err, &unwritable) {
			log.Error().Msg(err.Error())
		} else {
			log.Error().Stack().Err(err).Msgf("an unexpected error happened during copy%s", t.logSuffix())
		}
	}
}

func (t *Task) run(ctx context.Context) error {
	t.setStatus(StatusMounting)
	src, err := t.mount(ctx)
	if err != nil {
		return err
	}
	t.src = trimTrailingSlashes(src)

	dest := trimTrailingSlashes(t.dest)
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return &DestinationUnwritableError{Dest: dest}
	}

	t.setStatus(StatusCopying)
	log.Info().Msgf("starting copy%s", t.logSuffix())
	return t.copy(ctx, t.src, dest)
}

// mount brings the filesystem to a mounted state. A filesystem that is
// already mounted is used as-is and will not be unmounted afterwards.
func (t *Task) mount(ctx context.Context) (string, error) {
	mountPoint, err := t.fs.MountPoint(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query mount point: %w", err)
	}
	if mountPoint != "" {
		t.mu.Lock()
		t.alreadyMounted = true
		t.mu.Unlock()
		return mountPoint, nil
	}

	mountPoint, err = t.fs.Mount(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("mount call failed: %w", err)
	}
	if mountPoint == "" {
		device, _ := t.fs.Device(ctx)
		return "", &FilesystemUnmountableError{Device: device}
	}

	t.mu.Lock()
	t.mounted = true
	t.mu.Unlock()
	return mountPoint, nil
}

func (t *Task) copy(ctx context.Context, src, dest string) error {
	writer := &progressWriter{parser: &progressParser{report: t.reportProgress}}
	var stderr bytes.Buffer

	args := []string{"--compress", "--recursive", "--update", "--info=progress2", src, dest}
	log.Debug().Msgf("running '%s %s'", t.rsyncBin, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, t.rsyncBin, args...)
	cmd.Stdout = writer
	cmd.Stderr = &stderr

	err := cmd.Run()
	writer.Flush()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		// rsync exits non-zero for partial transfers it already
		// reported on the progress stream; surface it without failing
		// the task beyond what was logged.
		log.Warn().
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msgf("sync tool exited with error: %v", err)
	}
	return nil
}

// cleanup unmounts the filesystem regardless of how the copy ended,
// but never unmounts something the task did not itself mount.
func (t *Task) cleanup() {
	t.mu.Lock()
	shouldUnmount := t.mounted && !t.alreadyMounted
	t.mu.Unlock()

	if !shouldUnmount {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), unmountTimeout)
	defer cancel()

	device, _ := t.fs.Device(ctx)
	if err := t.fs.Unmount(ctx); err != nil {
		if udisks.IsDeviceBusy(err) {
			log.Warn().Msgf("can't auto-unmount %s: device is busy", device)
			return
		}
		log.Error().Err(err).Msgf("failed to unmount %s", device)
		return
	}
	log.Info().Msgf("unmounted %s", device)
}

func (t *Task) reportProgress(percent int) {
	t.mu.Lock()
	t.progress = percent
	t.mu.Unlock()

	log.Info().Msgf("copy progress: %d%%", percent)
	if t.progressFn != nil {
		t.progressFn(percent)
	}
}

func (t *Task) logSuffix() string {
	if t.src == "" {
		return fmt.Sprintf(" to %s", t.dest)
	}
	return fmt.Sprintf(" of %s to %s", t.src, t.dest)
}

// trimTrailingSlashes normalizes a path for rsync: a trailing
// separator flips rsync from "create a nested directory" to "merge
// contents".
func trimTrailingSlashes(path string) string {
	return strings.TrimRight(path, "/")
}
