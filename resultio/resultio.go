// Package resultio implements the result-streaming collaborator
// spec.md §6 specifies: atomic append of (time_index, global_x,
// global_y, value) little-endian float32 records to a binary file.
// spec.md names this collaborator as external/interface-only for the
// core kernel; this package is the reference implementation of that
// interface, exercised by the stencil package's SnapshotSink and by
// this package's own tests. Grounded on gofem's out/ package (result
// serialization is a dedicated, separate concern from the solver) and
// on github.com/maseology/mmio's file-existence/directory helpers used
// elsewhere in the pack for output-path management.
package resultio

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/fearghalodonncha/allscale-amdados/errs"
	"github.com/maseology/mmio"
)

// Record is one streamed observation: a time step index, global grid
// coordinates, and the estimated concentration value.
type Record struct {
	TIndex int32
	GX, GY int32
	Value  float32
}

const recordSize = 4 * 4 // four float32-width fields

// Writer is the append-only sink the stencil driver's snapshot observer
// writes through.
type Writer interface {
	Append(r Record) error
	Close() error
}

// BinaryWriter serializes Records as little-endian binary, guarding the
// underlying file with a mutex so concurrent subdomain snapshots can
// call Append without corrupting the stream (spec.md's "atomic
// append").
type BinaryWriter struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	buf [recordSize]byte
}

// Create opens path for writing, creating its parent directory if
// necessary (mirroring mmio.GetFileDir-based output-dir setup seen
// elsewhere in the pack).
func Create(path string) (*BinaryWriter, error) {
	dir := filepath.Dir(path)
	if _, ok := mmio.FileExists(dir); !ok {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Fatalf(errs.IoFailure, "creating output dir %q: %v", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Fatalf(errs.IoFailure, "creating result file %q: %v", path, err)
	}
	return &BinaryWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one record, flushing immediately so the write is
// durable before returning (spec.md's atomic-append contract).
func (w *BinaryWriter) Append(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	binary.LittleEndian.PutUint32(w.buf[0:4], math.Float32bits(float32(r.TIndex)))
	binary.LittleEndian.PutUint32(w.buf[4:8], math.Float32bits(float32(r.GX)))
	binary.LittleEndian.PutUint32(w.buf[8:12], math.Float32bits(float32(r.GY)))
	binary.LittleEndian.PutUint32(w.buf[12:16], math.Float32bits(r.Value))

	if _, err := w.w.Write(w.buf[:]); err != nil {
		return errs.Fatalf(errs.IoFailure, "appending result record: %v", err)
	}
	return w.w.Flush()
}

// Close flushes and closes the underlying file.
func (w *BinaryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return errs.Fatalf(errs.IoFailure, "flushing result file: %v", err)
	}
	return w.f.Close()
}

// ReadAll reads every record from r until EOF, used by tests to verify
// Writer/Reader round-trips.
func ReadAll(r io.Reader) ([]Record, error) {
	var out []Record
	var buf [recordSize]byte
	for {
		_, err := io.ReadFull(r, buf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Fatalf(errs.IoFailure, "reading result record: %v", err)
		}
		out = append(out, Record{
			TIndex: int32(math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))),
			GX:     int32(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))),
			GY:     int32(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))),
			Value:  math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])),
		})
	}
	return out, nil
}
