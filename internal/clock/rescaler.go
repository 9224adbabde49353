package clock

const (
	// SubsecondModulus is the rollover point of the RTC sub-second field (microseconds).
	SubsecondModulus = 1_000_000
	// CounterModulus is the rollover point of a free-running 32-bit microsecond counter.
	CounterModulus = 1 << 32
)

// Reading is one raw hardware clock sample.
type Reading struct {
	Seconds    uint32
	Subseconds uint32
}

// Rescaler turns RTC readings into a monotonic microsecond count measured from
// the first reading it observed.
type Rescaler struct {
	primed bool
	prev   Reading
	offset uint64
}

// NewRescaler returns an unprimed rescaler.
func NewRescaler() *Rescaler {
	return &Rescaler{}
}

// Rescale accumulates the forward delta since the previous reading and returns
// the running microsecond count. The first call returns 0.
func (r *Rescaler) Rescale(rd Reading) uint64 {
	if !r.primed {
		r.primed = true
		r.prev = rd
		r.offset = 0
		return 0
	}

	r.offset += forwardDelta(r.prev, rd)
	r.prev = rd
	return r.offset
}

// Elapsed returns the last value produced by Rescale.
func (r *Rescaler) Elapsed() uint64 {
	return r.offset
}

// Reset forgets the zero reference.
func (r *Rescaler) Reset() {
	*r = Rescaler{}
}

func forwardDelta(prev, next Reading) uint64 {
	// Out-of-range sub-second values mean the field is a raw 32-bit counter.
	if prev.Subseconds >= SubsecondModulus || next.Subseconds >= SubsecondModulus {
		return uint64(next.Subseconds - prev.Subseconds)
	}

	seconds := int64(next.Seconds) - int64(prev.Seconds)
	elapsed := seconds*SubsecondModulus + int64(next.Subseconds) - int64(prev.Subseconds)
	if elapsed >= 0 {
		return uint64(elapsed)
	}
	return uint64((int64(next.Subseconds) - int64(prev.Subseconds) + SubsecondModulus) % SubsecondModulus)
}
