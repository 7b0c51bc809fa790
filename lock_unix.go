//go:build unix || linux || darwin

package au

import (
	"syscall"
)

func (l *fileLock) lock(mode LockMode) error {
	op := syscall.LOCK_SH
	if mode == LockExclusive {
		op = syscall.LOCK_EX
	}
	// Non-blocking: a second writer should fail immediately, not queue
	// up behind the first and then scribble on its stream.
	return syscall.Flock(int(l.f.Fd()), op|syscall.LOCK_NB)
}

func (l *fileLock) unlock() error {
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
}
