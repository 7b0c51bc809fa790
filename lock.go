// OS-level file locking for single-writer enforcement.
//
// The format assumes exactly one appender per stream file: backref
// bookkeeping cannot survive interleaved writers. fileLock wraps
// flock(2) / LockFileEx so an OutputFile can hold an exclusive lock for
// the whole encoding session and a second writer fails fast instead of
// corrupting the stream.
package au

import "os"

// LockMode selects shared (read) or exclusive (write) locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// fileLock binds lock operations to a file handle. The handle must
// outlive any held lock; OutputFile guarantees this by unlocking in
// Close before the file is closed.
type fileLock struct {
	f *os.File
}
