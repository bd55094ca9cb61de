package gateway

import "testing"

func newTestCollector(maxDigits int, terminator string) (*DTMFCollector, *int, *int, *int) {
	interDigit, final, cancels := 0, 0, 0
	c := NewDTMFCollector(maxDigits, terminator,
		func() { interDigit++ },
		func() { final++ },
		func() { cancels++ },
	)
	return c, &interDigit, &final, &cancels
}

func TestDTMFCollector_TerminatorFinalizesWithoutAppendingIt(t *testing.T) {
	c, _, _, cancels := newTestCollector(16, "#")

	for _, d := range []string{"1", "2", "3"} {
		res, done := c.AddDigit(d)
		if done {
			t.Fatalf("unexpected early finalize on digit %q: %+v", d, res)
		}
	}

	res, done := c.AddDigit("#")
	if !done {
		t.Fatal("expected terminator to finalize")
	}
	if res.Digits != "123" {
		t.Fatalf("Digits = %q, want 123", res.Digits)
	}
	if res.Reason != ReasonDTMFTerminatorReceived {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonDTMFTerminatorReceived)
	}
	if *cancels != 1 {
		t.Fatalf("cancelTimers called %d times, want 1", *cancels)
	}
}

func TestDTMFCollector_MaxDigitsFinalizes(t *testing.T) {
	c, _, _, _ := newTestCollector(3, "#")

	c.AddDigit("1")
	c.AddDigit("2")
	res, done := c.AddDigit("3")

	if !done {
		t.Fatal("expected max-digits finalize on third digit")
	}
	if res.Digits != "123" || res.Reason != ReasonDTMFMaxDigitsReached {
		t.Fatalf("got %+v", res)
	}
}

func TestDTMFCollector_EachDigitRearmsTimers(t *testing.T) {
	c, interDigit, final, _ := newTestCollector(16, "#")

	c.AddDigit("1")
	c.AddDigit("2")

	if *interDigit != 2 || *final != 2 {
		t.Fatalf("interDigit=%d final=%d, want 2 and 2", *interDigit, *final)
	}
}

func TestDTMFCollector_InterDigitTimeoutFinalizes(t *testing.T) {
	c, _, _, cancels := newTestCollector(16, "#")
	c.AddDigit("5")

	res := c.InterDigitTimeout()
	if res.Digits != "5" || res.Reason != ReasonDTMFInterDigitTimeout {
		t.Fatalf("got %+v", res)
	}
	if *cancels != 1 {
		t.Fatalf("cancelTimers called %d times, want 1", *cancels)
	}
}

func TestDTMFCollector_FinalTimeoutFinalizes(t *testing.T) {
	c, _, _, _ := newTestCollector(16, "#")
	c.AddDigit("7")
	c.AddDigit("8")

	res := c.FinalTimeout()
	if res.Digits != "78" || res.Reason != ReasonDTMFFinalTimeout {
		t.Fatalf("got %+v", res)
	}
}

func TestDigitName(t *testing.T) {
	if DigitName("1") != "one" {
		t.Fatalf("DigitName(1) = %q, want one", DigitName("1"))
	}
	if DigitName("#") != "pound" {
		t.Fatalf("DigitName(#) = %q, want pound", DigitName("#"))
	}
	if DigitName("unknown") != "unknown" {
		t.Fatalf("DigitName(unknown) = %q, want passthrough", DigitName("unknown"))
	}
}
