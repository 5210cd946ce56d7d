//go:build windows

package writer

import (
	"os"
)

// lockFile is a no-op on Windows. The output is opened for writing
// exclusively by this process in practice.
// TODO: use windows.LockFileEx from golang.org/x/sys/windows.
func lockFile(file *os.File) error {
	return nil
}

// unlockFile releases the lock
func unlockFile(file *os.File) error {
	return nil
}
