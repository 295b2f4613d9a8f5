// Package archive opens a recording container: a tar archive, possibly
// compressed, holding the process snapshot and the perf script dump.
//
// The collector writes exactly two members, in this order:
//
//	perf-mdata.txt  process snapshot and recording metadata
//	perf.data.txt   perf script output, one record per line
//
// The snapshot must be fully read before the data member so the kernel
// classifier is ready when streaming starts, so members arriving in the
// wrong order are treated as corruption.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"schedtrace/internal/procsnap"
)

const (
	metadataMember = "perf-mdata.txt"
	dataMember     = "perf.data.txt"
)

// ErrNoData reports a container without a perf.data.txt member.
var ErrNoData = errors.New("archive: no " + dataMember + " member")

// Recording is an opened container, positioned at the start of the data
// member. Close it when done.
type Recording struct {
	// Snapshot is the parsed process snapshot from perf-mdata.txt.
	Snapshot *procsnap.Snapshot

	// Data reads the perf script dump.
	Data io.Reader

	closers []io.Closer
}

// Open opens the container at path, decompresses it if needed, parses the
// snapshot member and leaves the reader positioned at the data member.
func Open(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	rec := &Recording{closers: []io.Closer{f}}
	raw, err := decompress(bufio.NewReader(f))
	if err != nil {
		rec.Close()
		return nil, fmt.Errorf("archive: %s: %w", path, err)
	}
	if c, ok := raw.(io.Closer); ok {
		rec.closers = append(rec.closers, c)
	}

	tr := tar.NewReader(raw)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			rec.Close()
			if rec.Snapshot == nil {
				return nil, fmt.Errorf("archive: %s: no %s member", path, metadataMember)
			}
			return nil, fmt.Errorf("archive: %s: %w", path, ErrNoData)
		}
		if err != nil {
			rec.Close()
			return nil, fmt.Errorf("archive: %s: %w", path, err)
		}
		switch hdr.Name {
		case metadataMember:
			snap, err := procsnap.Parse(tr)
			if err != nil {
				rec.Close()
				return nil, fmt.Errorf("archive: %s: %s: %w", path, metadataMember, err)
			}
			rec.Snapshot = snap
		case dataMember:
			if rec.Snapshot == nil {
				rec.Close()
				return nil, fmt.Errorf("archive: %s: %s precedes %s, possible corruption",
					path, dataMember, metadataMember)
			}
			rec.Data = tr
			return rec, nil
		}
	}
}

// Close releases the underlying file and decompressor.
func (r *Recording) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if cerr := r.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	r.closers = nil
	return err
}

// Magic bytes of the supported compression formats.
var (
	magicGzip = []byte{0x1f, 0x8b}
	magicXZ   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompress sniffs the stream's leading bytes and wraps it in the
// matching decompressor. An unrecognized prefix is passed through as-is
// and left to the tar reader to reject if it is not a plain archive.
func decompress(br *bufio.Reader) (io.Reader, error) {
	head, err := br.Peek(len(magicXZ))
	if err != nil && err != io.EOF {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return gzip.NewReader(br)
	case bytes.HasPrefix(head, magicXZ):
		return xz.NewReader(br)
	case bytes.HasPrefix(head, magicZstd):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return br, nil
	}
}
