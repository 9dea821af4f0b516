// Package clock converts frame and sample indexes into presentation
// timestamps using exact rational rates.
package clock

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// Second is the time resolution of every derived timestamp.
const Second = time.Second

// None marks a timestamp or a duration that is not set.
const None time.Duration = -1

// Rational is a rate such as 30000/1001 frames per second.
type Rational struct {
	Num int
	Den int
}

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

var ErrBadRational = errors.New("bad rational")

// ParseRational reads "num/den" or a plain integer such as "25".
func ParseRational(s string) (Rational, error) {
	n, d, found := strings.Cut(strings.TrimSpace(s), "/")
	num, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return Rational{}, fmt.Errorf("%w: %q", ErrBadRational, s)
	}
	den := 1
	if found {
		if den, err = strconv.Atoi(strings.TrimSpace(d)); err != nil {
			return Rational{}, fmt.Errorf("%w: %q", ErrBadRational, s)
		}
	}
	r := Rational{Num: num, Den: den}
	if !r.Valid() {
		return Rational{}, fmt.Errorf("%w: %q", ErrBadRational, s)
	}
	return r, nil
}

// IsZero reports a still-image rate (0/x).
func (r Rational) IsZero() bool { return r.Num == 0 }

// Valid reports whether r can drive a clock: num >= 0 and den > 0.
func (r Rational) Valid() bool { return r.Num >= 0 && r.Den > 0 }

// Compare returns -1, 0 or 1 as r is less, equal or greater than o.
// Both denominators must be positive.
func (r Rational) Compare(o Rational) int {
	a := int64(r.Num) * int64(o.Den)
	b := int64(o.Num) * int64(r.Den)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Timing is the presentation timestamp and the duration of one buffer.
type Timing struct {
	Timestamp time.Duration
	Duration  time.Duration
}

// Unset is the timing of a buffer without a meaningful time.
var Unset = Timing{Timestamp: None, Duration: None}

func (t Timing) Valid() bool { return t.Timestamp != None }

// End returns the end time of the buffer, or None when either part is unset.
func (t Timing) End() time.Duration {
	if t.Timestamp == None || t.Duration == None {
		return None
	}
	return t.Timestamp + t.Duration
}

func (t Timing) String() string {
	if !t.Valid() {
		return "none"
	}
	if t.Duration == None {
		return t.Timestamp.String()
	}
	return fmt.Sprintf("%v+%v", t.Timestamp, t.Duration)
}

// DeriveTiming returns the timing of the buffer at index for the given rate.
//
//	timestamp = index * den * Second / num
//	duration  = Second * den / num
//
// The timestamp is always computed from the absolute index so rounding
// never accumulates over a long run. A zero numerator (still image)
// yields Unset. The rate denominator must be positive.
func DeriveTiming(index uint64, r Rational) Timing {
	if r.Num <= 0 || r.Den <= 0 {
		return Unset
	}
	num, den := uint64(r.Num), uint64(r.Den)
	return Timing{
		Timestamp: toDuration(Scale(index, den*uint64(Second), num)),
		Duration:  toDuration(Scale(uint64(Second), den, num)),
	}
}

// Offset returns the timestamp of the sample at offset for a sample rate,
// along with the duration of n samples starting there.
func Offset(offset uint64, n int, rate int) Timing {
	if rate <= 0 {
		return Unset
	}
	r := uint64(rate)
	start := Scale(offset, uint64(Second), r)
	end := Scale(offset+uint64(n), uint64(Second), r)
	return Timing{Timestamp: toDuration(start), Duration: toDuration(end - start)}
}

// Scale computes val * num / denom rounding down, with a 128-bit
// intermediate product so realistic rates never overflow.
// The result saturates at math.MaxUint64; a zero denom does the same.
func Scale(val, num, denom uint64) uint64 {
	if denom == 0 {
		return math.MaxUint64
	}
	if val == 0 || num == 0 {
		return 0
	}
	if num == denom {
		return val
	}
	hi, lo := bits.Mul64(val, num)
	if hi >= denom {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, denom)
	return q
}

func toDuration(v uint64) time.Duration {
	if v > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(v)
}
