// Locked output file for the encode sink.
//
// CreateOutput opens (or truncates) a stream file and takes an
// exclusive lock for the lifetime of the handle. Encoders write through
// it unchanged; the lock exists purely to make the format's
// single-writer assumption an enforced invariant rather than a
// convention.
package au

import (
	"fmt"
	"os"
)

// OutputFile is an exclusively-locked stream file open for writing.
type OutputFile struct {
	f    *os.File
	lock fileLock
	sync bool
}

// CreateOutput creates or truncates the stream file at path and locks
// it. syncWrites makes every Write fsync, trading throughput for
// bounded loss on crash.
func CreateOutput(path string, syncWrites bool) (*OutputFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	o := &OutputFile{f: f, lock: fileLock{f: f}, sync: syncWrites}
	if err := o.lock.lock(LockExclusive); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return o, nil
}

// Write appends p. The encoder hands over each record (with any
// pending dictionary records) as a single call, so a crash truncates
// at a record boundary at worst.
func (o *OutputFile) Write(p []byte) (int, error) {
	n, err := o.f.Write(p)
	if err != nil {
		return n, err
	}
	if o.sync {
		if err := o.f.Sync(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close releases the lock and the file.
func (o *OutputFile) Close() error {
	lerr := o.lock.unlock()
	cerr := o.f.Close()
	if cerr != nil {
		return cerr
	}
	return lerr
}
