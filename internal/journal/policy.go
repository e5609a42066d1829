package journal

import "fmt"

// ResyncReason names one dropped delivery that counted toward a resync.
type ResyncReason struct {
	Kind   string
	Detail string
}

type ResyncSignal struct {
	Dropped   uint64
	Delivered uint64
	Reasons   []ResyncReason
}

// Policy watches frame deliveries to one consumer and asks for a full
// resynchronisation once drops pass the threshold ratio.
type Policy struct {
	delivered uint64
	dropped   uint64
	pending   bool
	reasons   []ResyncReason
}

const dropThresholdPerThousand = 1
const resyncReasonLimit = 8

func NewPolicy() *Policy {
	return &Policy{reasons: make([]ResyncReason, 0, resyncReasonLimit)}
}

func (p *Policy) NoteDelivered() {
	if p == nil {
		return
	}
	if p.delivered == ^uint64(0) {
		p.delivered /= 2
		p.dropped /= 2
	}
	p.delivered++
}

func (p *Policy) NoteDropped(kind, detail string) {
	if p == nil {
		return
	}
	p.dropped++
	if len(p.reasons) < resyncReasonLimit {
		p.reasons = append(p.reasons, ResyncReason{Kind: kind, Detail: detail})
	}
	p.evaluate()
}

func (p *Policy) evaluate() {
	if p.pending || p.dropped == 0 {
		return
	}
	total := max(p.delivered, 1)
	if p.dropped*1000 >= total*dropThresholdPerThousand {
		p.pending = true
	}
}

// Consume returns the pending signal and resets the counters.
func (p *Policy) Consume() (ResyncSignal, bool) {
	if p == nil || !p.pending {
		return ResyncSignal{}, false
	}
	signal := ResyncSignal{
		Dropped:   p.dropped,
		Delivered: p.delivered,
		Reasons:   append([]ResyncReason(nil), p.reasons...),
	}
	p.pending = false
	p.delivered = 0
	p.dropped = 0
	p.reasons = p.reasons[:0]
	return signal, true
}

func (s ResyncSignal) Summary() string {
	if s.Dropped == 0 && s.Delivered == 0 {
		return ""
	}
	return fmt.Sprintf("dropped=%d delivered=%d reasons=%v", s.Dropped, s.Delivered, s.Reasons)
}
