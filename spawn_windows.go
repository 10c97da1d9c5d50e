//go:build windows

// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"os"
	"os/exec"
	"sort"
	"syscall"

	"golang.org/x/sys/windows"
)

// createNewProcessGroup is syscall.CREATE_NEW_PROCESS_GROUP, spelled out
// because os/exec.Cmd.SysProcAttr is always *syscall.SysProcAttr, not
// golang.org/x/sys/windows's type of the same shape.
const createNewProcessGroup = 0x00000200

// IODirection selects which end of a pipe a subprocess inherits.
type IODirection int

const (
	DirectionNone IODirection = iota
	DirectionRead
	DirectionWrite
)

// CreatePipe opens an anonymous pipe via [windows.CreatePipe]. Neither end
// is poll-able, and [FastPoller] reports no per-fd readiness or callback
// for them (see poller_windows.go).
func CreatePipe() (readFD, writeFD int, err error) {
	var r, w windows.Handle
	if err := windows.CreatePipe(&r, &w, nil, 0); err != nil {
		return -1, -1, WrapError("create pipe", err)
	}
	return int(r), int(w), nil
}

// FDRemap describes one fd a spawned subprocess should receive.
type FDRemap struct {
	SourceFD int
	TargetFD int
}

// SpawnOptions carries the flags a subprocess spawn may customize.
type SpawnOptions struct {
	Detached           bool
	AllowSetForeground bool
	NoCloseAfterSpawn  bool
}

// Spawn starts path with argv, remapping fds into the child via
// [os/exec.Cmd]'s ExtraFiles. Unlike the native engine's spawn-helper
// manifest indirection (needed there to fix up handle inheritance around
// ambiguous argv quoting), Go's exec.Cmd already produces a correctly
// quoted, UTF-16 command line and performs handle inheritance itself, so
// no helper binary is required here.
func Spawn(path string, argv []string, fds []FDRemap, opts SpawnOptions) (pid int, err error) {
	cmd := exec.Command(path, argv...)

	remaps := append([]FDRemap(nil), fds...)
	sort.Slice(remaps, func(i, j int) bool { return remaps[i].TargetFD < remaps[j].TargetFD })

	for _, r := range remaps {
		f := os.NewFile(uintptr(r.SourceFD), "")
		switch r.TargetFD {
		case 0:
			cmd.Stdin = f
		case 1:
			cmd.Stdout = f
		case 2:
			cmd.Stderr = f
		default:
			cmd.ExtraFiles = append(cmd.ExtraFiles, f)
		}
	}

	if opts.Detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
	}

	if err := cmd.Start(); err != nil {
		return 0, WrapError("spawn "+path, err)
	}
	pid = cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	return pid, nil
}
