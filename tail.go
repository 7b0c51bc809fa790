// Tail: decode the suffix of a stream file.
//
// OpenTail seeks near the end of the file and resynchronises onto the
// first valid value record, rebuilding whatever dictionary context the
// suffix needs by walking backrefs — the cost is bounded by the
// dictionary epoch, not the file. The caller then streams records off
// the returned decoder. In follow mode the decode simply never sees
// EOF: the byte source polls for appended data until the source is
// closed.
package au

// DefaultTailBytes is how far before the end of the file tail starts
// looking for a record boundary.
const DefaultTailBytes = 256 * 1024

// TailOptions configures OpenTail.
type TailOptions struct {
	Bytes  int64 // scan window before EOF (default DefaultTailBytes)
	Follow bool  // keep reading as the file grows
}

// OpenTail opens the stream at path positioned at the first valid
// value record within the last opts.Bytes of the file, with dictionary
// context reconstructed. ErrNoSync means no valid value record starts
// in the window; callers may retry with a larger one. The caller owns
// the decoder's source and must close it.
func OpenTail(path string, opts TailOptions) (*Decoder, error) {
	if opts.Bytes == 0 {
		opts.Bytes = DefaultTailBytes
	}
	src, err := OpenSource(path, SourceOptions{
		Follow:     opts.Follow,
		BufferSize: TailBufferSize,
	})
	if err != nil {
		return nil, err
	}

	d := NewDecoder(src)
	d.RequireHeader = false
	if err := src.Tail(opts.Bytes); err != nil {
		src.Close()
		return nil, err
	}
	if err := d.Sync(); err != nil {
		src.Close()
		return nil, err
	}
	return d, nil
}
