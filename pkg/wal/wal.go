package wal

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// WAL is an append-only journal of committed batches stored in one file.
type WAL struct {
	path string

	mu     sync.Mutex
	fd     *os.File
	lsn    uint64
	txn    uint64
	size   int64
	closed bool
}

// Open opens or creates the journal at path and positions it after the last
// valid entry.
func Open(path string) (*WAL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, Error.Wrap(err)
	}

	w := &WAL{path: path}
	end, err := w.scan(func(e *Entry) {
		if e.LSN > w.lsn {
			w.lsn = e.LSN
		}
		if e.TxnID > w.txn {
			w.txn = e.TxnID
		}
	})
	if err != nil {
		return nil, err
	}

	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	// drop a torn tail so new batches follow the last good entry
	if err := fd.Truncate(end); err != nil {
		_ = fd.Close()
		return nil, Error.Wrap(err)
	}
	if _, err := fd.Seek(end, io.SeekStart); err != nil {
		_ = fd.Close()
		return nil, Error.Wrap(err)
	}
	w.fd = fd
	w.size = end
	return w, nil
}

// Path returns the journal file path.
func (w *WAL) Path() string { return w.path }

// Size returns the current journal size in bytes.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// AppendBatch writes ops followed by a commit marker and fsyncs them.
func (w *WAL) AppendBatch(ops []Op) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	w.txn++
	buf := w.encodeBatch(w.txn, ops)
	n, err := w.fd.Write(buf)
	w.size += int64(n)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(w.fd.Sync())
}

// Rewrite replaces the journal with a single batch holding ops. It is used
// to compact the log down to a snapshot of live keys.
func (w *WAL) Rewrite(ops []Op) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	tmp := w.path + ".tmp"
	fd, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return Error.Wrap(err)
	}

	w.txn++
	buf := w.encodeBatch(w.txn, ops)
	if _, err := fd.Write(buf); err != nil {
		_ = fd.Close()
		return Error.Wrap(err)
	}
	if err := fd.Sync(); err != nil {
		_ = fd.Close()
		return Error.Wrap(err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = fd.Close()
		return Error.Wrap(err)
	}

	_ = w.fd.Close()
	w.fd = fd
	w.size = int64(len(buf))
	return nil
}

// Close closes the journal
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return Error.Wrap(w.fd.Close())
}

func (w *WAL) encodeBatch(txn uint64, ops []Op) []byte {
	now := time.Now()
	var buf []byte
	for _, op := range ops {
		w.lsn++
		e := Entry{LSN: w.lsn, TxnID: txn, OpType: op.Type, Key: op.Key, Value: op.Value, Timestamp: now}
		buf = append(buf, e.Encode()...)
	}
	w.lsn++
	commit := Entry{LSN: w.lsn, TxnID: txn, OpType: OpCommit, Timestamp: now}
	return append(buf, commit.Encode()...)
}

// scan reads every valid entry in the file and returns the offset just past
// the last one. Reading stops at the first truncated or corrupted entry.
func (w *WAL) scan(fn func(*Entry)) (int64, error) {
	fd, err := os.Open(w.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, Error.Wrap(err)
	}
	defer func() { _ = fd.Close() }()

	r := bufio.NewReader(fd)
	var offset int64
	for {
		entry, n, err := readEntry(r)
		if err != nil {
			return offset, nil
		}
		offset += int64(n)
		fn(entry)
	}
}

// readEntry reads a single entry from the reader
func readEntry(r io.Reader) (*Entry, int, error) {
	header := make([]byte, EntryHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, err
	}

	keyLen := binary.LittleEndian.Uint32(header[24:28])
	valLen := binary.LittleEndian.Uint32(header[28:32])

	data := make([]byte, EntryHeaderSize+int(keyLen)+int(valLen)+4)
	copy(data, header)
	if _, err := io.ReadFull(r, data[EntryHeaderSize:]); err != nil {
		return nil, 0, ErrTruncated
	}

	entry, err := DecodeEntry(data)
	if err != nil {
		return nil, 0, err
	}
	return entry, len(data), nil
}
