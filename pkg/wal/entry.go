package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// OpType represents the type of journal operation
type OpType byte

const (
	// OpPut stores a value under a key
	OpPut OpType = 1

	// OpDelete removes a key
	OpDelete OpType = 2

	// OpCommit closes a batch; batches without one are discarded on replay
	OpCommit OpType = 3
)

// EntryHeaderSize is the fixed size of the entry header.
// Layout: LSN(8) + TxnID(8) + OpType(1) + Reserved(7) + KeyLen(4) + ValLen(4) + Timestamp(8)
const EntryHeaderSize = 40

// Op is a single mutation of a batch.
type Op struct {
	Type  OpType
	Key   []byte
	Value []byte
}

// Entry represents a single journal record
type Entry struct {
	LSN       uint64
	TxnID     uint64
	OpType    OpType
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Encode serializes the entry to bytes with CRC32 checksum
// Format: [Header(40)] [Key] [Value] [CRC32(4)]
func (e *Entry) Encode() []byte {
	keyLen := len(e.Key)
	valLen := len(e.Value)
	buf := make([]byte, e.Size())

	binary.LittleEndian.PutUint64(buf[0:8], e.LSN)
	binary.LittleEndian.PutUint64(buf[8:16], e.TxnID)
	buf[16] = byte(e.OpType)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(keyLen))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(valLen))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(e.Timestamp.Unix()))

	offset := EntryHeaderSize
	copy(buf[offset:], e.Key)
	offset += keyLen
	copy(buf[offset:], e.Value)
	offset += valLen

	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:offset+4], crc)
	return buf
}

// DecodeEntry deserializes an entry from bytes
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize+4 {
		return nil, ErrTruncated
	}

	keyLen := binary.LittleEndian.Uint32(data[24:28])
	valLen := binary.LittleEndian.Uint32(data[28:32])
	size := EntryHeaderSize + int(keyLen) + int(valLen) + 4
	if len(data) < size {
		return nil, ErrTruncated
	}
	data = data[:size]

	storedCRC := binary.LittleEndian.Uint32(data[size-4:])
	if storedCRC != crc32.ChecksumIEEE(data[:size-4]) {
		return nil, ErrCorrupted
	}

	entry := &Entry{
		LSN:       binary.LittleEndian.Uint64(data[0:8]),
		TxnID:     binary.LittleEndian.Uint64(data[8:16]),
		OpType:    OpType(data[16]),
		Timestamp: time.Unix(int64(binary.LittleEndian.Uint64(data[32:40])), 0),
	}

	offset := EntryHeaderSize
	if keyLen > 0 {
		entry.Key = append([]byte(nil), data[offset:offset+int(keyLen)]...)
		offset += int(keyLen)
	}
	if valLen > 0 {
		entry.Value = append([]byte(nil), data[offset:offset+int(valLen)]...)
	}
	return entry, nil
}

// Size returns the encoded size of the entry
func (e *Entry) Size() int {
	return EntryHeaderSize + len(e.Key) + len(e.Value) + 4
}

func (e *Entry) String() string {
	opName := "UNKNOWN"
	switch e.OpType {
	case OpPut:
		opName = "PUT"
	case OpDelete:
		opName = "DELETE"
	case OpCommit:
		opName = "COMMIT"
	}
	return fmt.Sprintf("WAL[LSN=%d TxnID=%d Op=%s KeyLen=%d ValLen=%d]",
		e.LSN, e.TxnID, opName, len(e.Key), len(e.Value))
}
