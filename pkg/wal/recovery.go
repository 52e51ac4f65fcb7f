package wal

// ReplayFunc is called for each operation of a committed batch, in log order.
type ReplayFunc func(op Op) error

// Replay calls fn for every operation of every committed batch. Operations
// of a batch without a commit marker are skipped.
func (w *WAL) Replay(fn ReplayFunc) error {
	var (
		pending    []Op
		pendingTxn uint64
		replayErr  error
	)

	_, err := w.scan(func(e *Entry) {
		if replayErr != nil {
			return
		}
		if e.TxnID != pendingTxn {
			pending = pending[:0]
			pendingTxn = e.TxnID
		}
		switch e.OpType {
		case OpPut, OpDelete:
			pending = append(pending, Op{Type: e.OpType, Key: e.Key, Value: e.Value})
		case OpCommit:
			for _, op := range pending {
				if err := fn(op); err != nil {
					replayErr = Error.New("replay failed at LSN %d: %v", e.LSN, err)
					return
				}
			}
			pending = pending[:0]
		}
	})
	if err != nil {
		return err
	}
	return replayErr
}
