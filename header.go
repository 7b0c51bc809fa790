// Header record construction.
//
// A stream begins with exactly one header record: the 'H' marker, the
// literal "AU", the format version, and a free-form metadata string.
// Metadata is always inlined (never dict-referenced — the dictionary
// does not exist yet) and is truncated to MaxMetadataSize on encode.
package au

// Header is a parsed header record.
type Header struct {
	Version  uint64
	Metadata string
}

// appendHeader appends a complete header record.
func appendHeader(dst []byte, metadata string) []byte {
	if len(metadata) > MaxMetadataSize {
		metadata = metadata[:MaxMetadataSize]
	}
	dst = append(dst, recordHeader, 'A', 'U')
	dst = append(dst, smallPosBase|FormatVersion)
	dst = appendInlineString(dst, metadata)
	return append(dst, recordEnd, '\n')
}

// appendInlineString appends a string in its inline wire form: the
// short single-byte-length form when it fits, the 'S' varint form
// otherwise.
func appendInlineString(dst []byte, s string) []byte {
	if len(s) <= maxShortString {
		dst = append(dst, shortStringBase|byte(len(s)))
	} else {
		dst = append(dst, markerString)
		dst = appendVarint(dst, uint64(len(s)))
	}
	return append(dst, s...)
}
