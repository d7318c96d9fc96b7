package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing creation sequence numbers. The
// engine uses them to order orders in time; the service uses a second one
// to key execution reports.
type Sequencer struct {
	last atomic.Uint64
}

// New returns a sequencer whose first Next is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}
