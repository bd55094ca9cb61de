package gateway

import "strings"

// DigitNames maps the raw digit strings ARI delivers in ChannelDtmfReceived
// events to human-readable names, used for logging only.
var DigitNames = map[string]string{
	"0": "zero", "1": "one", "2": "two", "3": "three", "4": "four",
	"5": "five", "6": "six", "7": "seven", "8": "eight", "9": "nine",
	"*": "star", "#": "pound",
}

// DTMFResult is the outcome of a finalized DTMF collection.
type DTMFResult struct {
	Digits string
	Reason string
}

// DTMFCollector accumulates digits for one call turn and decides when the
// buffer is complete, per spec §4.4. It does not parse RTP telephone-event
// payloads — ARI delivers digits already decoded, one per
// ChannelDtmfReceived event.
type DTMFCollector struct {
	maxDigits      int
	terminator     string
	interDigitWait func()
	finalWait      func()
	cancelTimers   func()

	buf strings.Builder
}

// NewDTMFCollector builds a collector for one turn. interDigitWait and
// finalWait are called to (re)arm the respective timers after every digit;
// cancelTimers is called once the buffer finalizes.
func NewDTMFCollector(maxDigits int, terminator string, interDigitWait, finalWait, cancelTimers func()) *DTMFCollector {
	return &DTMFCollector{
		maxDigits:      maxDigits,
		terminator:     terminator,
		interDigitWait: interDigitWait,
		finalWait:      finalWait,
		cancelTimers:   cancelTimers,
	}
}

// Digits returns the buffer accumulated so far.
func (c *DTMFCollector) Digits() string {
	return c.buf.String()
}

// Len reports how many digits have been collected so far.
func (c *DTMFCollector) Len() int {
	return c.buf.Len()
}

// AddDigit appends digit to the buffer and reports whether the buffer just
// finalized, and if so the result. The terminator digit itself is never
// appended to the buffer (spec §8 scenario 4: digits "1,2,3,#" finalize
// with DTMF_RESULT=123, not 123#).
func (c *DTMFCollector) AddDigit(digit string) (DTMFResult, bool) {
	if c.terminator != "" && digit == c.terminator {
		c.cancelTimers()
		return DTMFResult{Digits: c.buf.String(), Reason: ReasonDTMFTerminatorReceived}, true
	}

	c.buf.WriteString(digit)

	if c.maxDigits > 0 && c.buf.Len() >= c.maxDigits {
		c.cancelTimers()
		return DTMFResult{Digits: c.buf.String(), Reason: ReasonDTMFMaxDigitsReached}, true
	}

	c.interDigitWait()
	c.finalWait()
	return DTMFResult{}, false
}

// InterDigitTimeout finalizes the buffer on an inter-digit timeout.
func (c *DTMFCollector) InterDigitTimeout() DTMFResult {
	c.cancelTimers()
	return DTMFResult{Digits: c.buf.String(), Reason: ReasonDTMFInterDigitTimeout}
}

// FinalTimeout finalizes the buffer on the overall final timeout.
func (c *DTMFCollector) FinalTimeout() DTMFResult {
	c.cancelTimers()
	return DTMFResult{Digits: c.buf.String(), Reason: ReasonDTMFFinalTimeout}
}

// DigitName returns the human-readable name for a raw digit string, or the
// digit itself if unknown.
func DigitName(digit string) string {
	if name, ok := DigitNames[digit]; ok {
		return name
	}
	return digit
}
