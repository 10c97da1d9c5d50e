// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// globalFlags is the package-level, mutex-guarded configuration set by
// SetGlobalFlag, in the idiom of logging.go's globalLogger singleton.
var globalFlags = struct {
	mu     sync.Mutex
	locked bool
	values map[string]string
}{values: make(map[string]string)}

// SetGlobalFlag sets a process-wide configuration flag (debug,
// disable-gpgconf, require-gnupg, gpgconf-name, gpg-name, inst-type,
// w32-inst-dir). It must be called before any [Context] is created; once
// one has been, further calls fail with ErrInvalidArgument, preserving
// the "set once" invariant.
func SetGlobalFlag(name, value string) error {
	globalFlags.mu.Lock()
	defer globalFlags.mu.Unlock()
	if globalFlags.locked {
		return WrapError("set global flag "+name, ErrInvalidArgument)
	}
	globalFlags.values[name] = value
	return nil
}

func lockGlobalFlags() {
	globalFlags.mu.Lock()
	globalFlags.locked = true
	globalFlags.mu.Unlock()
}

func globalFlag(name string) string {
	globalFlags.mu.Lock()
	defer globalFlags.mu.Unlock()
	return globalFlags.values[name]
}

// dirInfoCache is the process-wide, lazily-populated directory-info
// store, guarded by a single mutex per "small, low-contention
// shared state" policy.
var dirInfoCache = struct {
	mu       sync.Mutex
	populated bool
	values   map[string]string
}{values: make(map[string]string)}

var dirInfoKeys = []string{
	"homedir", "sysconfdir", "bindir", "libexecdir", "libdir", "datadir",
	"localedir", "socketdir", "agent-socket", "agent-ssh-socket",
	"dirmngr-socket", "uiserver-socket", "gpgconf-name", "gpg-name",
	"gpgsm-name", "g13-name", "keyboxd-name", "agent-name", "scdaemon-name",
	"dirmngr-name", "pinentry-name", "gpg-wks-client-name", "gpgtar-name",
}

// DirInfo looks up a directory-information key. On first
// call it populates the process-wide cache from the environment and, if
// not disabled via SetGlobalFlag("disable-gpgconf", "1"), from a
// discovered gpgconf binary's --list-dirs output. gpgconf
// --list-components is not run, so the *-name keys keep their built-in
// or SetGlobalFlag values.
func DirInfo(key string) (string, error) {
	lockGlobalFlags()
	dirInfoCache.mu.Lock()
	defer dirInfoCache.mu.Unlock()
	if !dirInfoCache.populated {
		populateDirInfo(dirInfoCache.values)
		dirInfoCache.populated = true
	}
	v, ok := dirInfoCache.values[key]
	if !ok {
		return "", WrapError("directory info key "+key, ErrInvalidArgument)
	}
	return v, nil
}

func populateDirInfo(values map[string]string) {
	for _, k := range dirInfoKeys {
		values[k] = ""
	}
	if home := os.Getenv("GNUPGHOME"); home != "" {
		values["homedir"] = home
	}

	names := map[string]string{
		"gpgconf-name": "gpgconf", "gpg-name": "gpg", "gpgsm-name": "gpgsm",
		"g13-name": "g13", "keyboxd-name": "keyboxd", "agent-name": "gpg-agent",
		"scdaemon-name": "scdaemon", "dirmngr-name": "dirmngr",
		"pinentry-name": "pinentry", "gpg-wks-client-name": "gpg-wks-client",
		"gpgtar-name": "gpgtar",
	}
	for k, defaultName := range names {
		if override := globalFlag(k); override != "" {
			values[k] = override
		} else {
			values[k] = defaultName
		}
	}

	if globalFlag("disable-gpgconf") == "1" {
		return
	}
	gpgconfPath, err := exec.LookPath(values["gpgconf-name"])
	if err != nil {
		return
	}
	mergeGpgconfDirs(values, gpgconfPath)
}

// mergeGpgconfDirs invokes "gpgconf --list-dirs" and folds its
// "key:value" lines into values, matching the colon-record idiom used
// throughout the engine's status/keylist output.
func mergeGpgconfDirs(values map[string]string, gpgconfPath string) {
	out, err := exec.Command(gpgconfPath, "--list-dirs").Output()
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(out), "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if _, known := values[k]; known {
			values[k] = v
		}
	}
}

// ParseDebugEnv implements the GPGME_DEBUG=<level>[;<path>] grammar.
// The sink path is honoured only when the real and effective
// uid match, mirroring the source's refusal to trust a setuid-relative
// path otherwise.
func ParseDebugEnv(raw string) (level int, sink string) {
	if raw == "" {
		return 0, ""
	}
	levelPart, sinkPart, _ := strings.Cut(raw, ";")
	level, err := strconv.Atoi(levelPart)
	if err != nil {
		return 0, ""
	}
	if sinkPart != "" && os.Getuid() == os.Geteuid() {
		sink = sinkPart
	}
	return level, sink
}
