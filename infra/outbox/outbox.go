package outbox

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// -------------------- State --------------------

// State is the delivery state of a stored report. A report leaves the
// outbox through Delete once the broker acknowledges it.
type State uint8

const (
	StateNew State = iota
	StateSent
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Record is one execution report waiting to be published.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const headerLen = 1 + 4 + 8 + 4

var ErrCorrupt = errors.New("corrupt outbox record")

// binary encoding: [state:1][retries:4][lastAttempt:8][crc32(payload):4][payload...]
func encodeRecord(r Record) []byte {
	buf := make([]byte, headerLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	binary.BigEndian.PutUint32(buf[13:17], crc32.ChecksumIEEE(r.Payload))
	copy(buf[headerLen:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < headerLen {
		return Record{}, errors.Wrapf(ErrCorrupt, "seq %d: %d bytes", seq, len(b))
	}
	if crc32.ChecksumIEEE(b[headerLen:]) != binary.BigEndian.Uint32(b[13:17]) {
		return Record{}, errors.Wrapf(ErrCorrupt, "seq %d: checksum mismatch", seq)
	}
	payload := make([]byte, len(b)-headerLen)
	copy(payload, b[headerLen:])
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- Outbox --------------------

// Outbox is a durable queue of encoded execution reports keyed by report
// sequence. Keys sort in sequence order so scans replay reports in the
// order they were produced.
type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put stores a new report in state NEW.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	rec := Record{Seq: seq, State: StateNew, Payload: payload}
	if err := o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync); err != nil {
		return errors.Wrapf(err, "put report %d", seq)
	}
	return nil
}

// UpdateState records a send attempt or a failure. The payload is kept as
// is. Acknowledged reports are deleted, not updated.
func (o *Outbox) UpdateState(seq uint64, state State, retries uint32) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	if err := o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync); err != nil {
		return errors.Wrapf(err, "update report %d", seq)
	}
	return nil
}

// Delete removes an acknowledged report.
func (o *Outbox) Delete(seq uint64) error {
	if err := o.db.Delete(keyFor(seq), pebble.Sync); err != nil {
		return errors.Wrapf(err, "delete report %d", seq)
	}
	return nil
}

// Get returns the stored report. A missing seq yields pebble.ErrNotFound
// wrapped with context.
func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, errors.Wrapf(err, "get report %d", seq)
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

// LastSeq returns the highest stored sequence, or 0 for an empty outbox.
func (o *Outbox) LastSeq() (uint64, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, errors.Wrap(err, "outbox iterator")
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// -------------------- Scan --------------------

// ScanByState calls fn for every record in state, in sequence order.
// Returning an error from fn stops the scan.
func (o *Outbox) ScanByState(state State, fn func(rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return errors.Wrap(err, "outbox iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) == 0 || State(val[0]) != state {
			continue
		}

		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, val)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const (
	keyPrefix = "report/"
	keyUpper  = "report/~"
)

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq); err != nil {
		return 0, errors.Wrapf(err, "parse key %q", b)
	}
	return seq, nil
}
