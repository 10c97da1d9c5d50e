//go:build windows

package cryptengine

import "golang.org/x/sys/windows"

// EFD_CLOEXEC and EFD_NONBLOCK are Unix eventfd flags, unused on Windows
// but defined so createWakeFd's signature matches across platforms.
const (
	EFD_CLOEXEC  = 0
	EFD_NONBLOCK = 0
)

// createWakeFd is a no-op on Windows: IOCP wakeup uses
// PostQueuedCompletionStatus to post a NULL completion, not a pipe or
// eventfd. Returns -1, -1 to signal no wake fd is needed; waitloop.go
// skips wake-fd registration when it sees a negative fd.
func createWakeFd(initval uint, flags int) (int, int, error) {
	return -1, -1, nil
}

// closeWakeFd is a no-op on Windows; there is no fd to close.
func closeWakeFd(wakeFd, wakeWriteFd int) error {
	return nil
}

// isWakeFdSupported reports false on Windows.
func isWakeFdSupported() bool {
	return false
}

// submitGenericWakeup interrupts a wait loop blocked in PollIO by posting a
// NULL completion to its IOCP handle, causing GetQueuedCompletionStatus to
// return immediately with overlapped == nil.
func submitGenericWakeup(iocpHandle uintptr) error {
	return windows.PostQueuedCompletionStatus(
		windows.Handle(iocpHandle),
		0,
		0,
		nil,
	)
}
