//go:build linux || darwin

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

	"golang.org/x/sys/unix"
)

// IODirection selects which end of a pipe a subprocess inherits.
type IODirection int

const (
	DirectionNone IODirection = iota
	DirectionRead
	DirectionWrite
)

// CreatePipe opens a pipe and returns its read and write fds, both
// close-on-exec. Callers pass the end the child should inherit to Spawn
// via an FDRemap; Spawn clears close-on-exec on that single fd rather
// than CreatePipe guessing the role up front.
func CreatePipe() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return -1, -1, WrapError("create pipe", err)
	}
	return fds[0], fds[1], nil
}

// FDRemap describes one fd a spawned subprocess should receive: the
// parent's SourceFD is attached to the child at TargetFD (the fd number
// the engine sees).
type FDRemap struct {
	SourceFD int
	TargetFD int
}

// SpawnOptions carries the flags a subprocess spawn may customize.
// Detached starts the engine in its own process group so it
// survives the parent receiving signals meant for an interactive
// controlling terminal; NoCloseAfterSpawn leaves the parent's copies of
// the remapped fds open instead of closing them once the child has
// inherited them (used by session-mode engines that keep writing after
// the start wrapper returns).
type SpawnOptions struct {
	Detached           bool
	AllowSetForeground bool
	NoCloseAfterSpawn  bool
}

// Spawn starts path with argv, remapping each entry of fds into the
// child's descriptor table at the requested TargetFD, and returns the
// child's pid. Built on [os/exec.Cmd] (ExtraFiles) rather than a raw
// ForkExec, in the idiom of the rest of the pack's subprocess callers.
func Spawn(path string, argv []string, fds []FDRemap, opts SpawnOptions) (pid int, err error) {
	cmd := exec.Command(path, argv...)

	remaps := append([]FDRemap(nil), fds...)
	sort.Slice(remaps, func(i, j int) bool { return remaps[i].TargetFD < remaps[j].TargetFD })

	// os/exec gives a child stdin/stdout/stderr at fd 0-2 plus one slot per
	// ExtraFiles entry, contiguous from fd 3; each non-stdio remap occupies
	// the next ExtraFiles slot in TargetFD order, since exec.Cmd has no
	// notion of an explicit target fd number beyond that contiguous run.
	nextExtra := 3
	for _, r := range remaps {
		if r.TargetFD >= 3 && r.TargetFD != nextExtra {
			return 0, WrapError("spawn "+path, ErrInvalidArgument)
		}
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
			nextExtra++
		}
	}

	if opts.Detached {
		cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return 0, WrapError("spawn "+path, err)
	}
	if !opts.NoCloseAfterSpawn {
		for _, r := range remaps {
			_ = unix.Close(r.SourceFD)
		}
	}
	pid = cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	return pid, nil
}
