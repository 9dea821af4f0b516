package caps

import (
	"fmt"
	"math/big"

	"github.com/avsynctest/avsynctest/pkg/media/clock"
)

type setKind uint8

const (
	kindAny setKind = iota
	kindRange
	kindList
)

// IntSet is the set of integer values a peer accepts for one field.
// The zero value accepts anything.
type IntSet struct {
	kind     setKind
	min, max int
	step     int
	list     []int
}

func Int(v int) IntSet             { return IntList(v) }
func IntList(v ...int) IntSet      { return IntSet{kind: kindList, list: v} }
func IntRange(min, max int) IntSet { return IntRangeStep(min, max, 1) }
func AnyInt() IntSet               { return IntSet{} }
func IntRangeStep(min, max, step int) IntSet {
	if step < 1 {
		step = 1
	}
	return IntSet{kind: kindRange, min: min, max: max, step: step}
}

// Contains reports whether v belongs to the set.
func (s IntSet) Contains(v int) bool {
	switch s.kind {
	case kindRange:
		return v >= s.min && v <= s.max && (v-s.min)%s.step == 0
	case kindList:
		for _, x := range s.list {
			if x == v {
				return true
			}
		}
		return false
	}
	return true
}

// Nearest returns the positive member closest to target, exact ties go
// to the lower value. False means the set has no positive member.
func (s IntSet) Nearest(target int) (int, bool) {
	switch s.kind {
	case kindRange:
		lo := s.min
		if lo < 1 {
			// first positive step
			lo = s.min + ((1-s.min)+s.step-1)/s.step*s.step
		}
		hi := s.min + (s.max-s.min)/s.step*s.step
		if s.max < s.min || lo > hi {
			return 0, false
		}
		if target <= lo {
			return lo, true
		}
		if target >= hi {
			return hi, true
		}
		below := s.min + (target-s.min)/s.step*s.step
		if below == target {
			return target, true
		}
		above := below + s.step
		if target-below <= above-target {
			return below, true
		}
		return above, true
	case kindList:
		best, found := 0, false
		for _, v := range s.list {
			if v < 1 {
				continue
			}
			if !found || closer(v, best, target) {
				best, found = v, true
			}
		}
		return best, found
	}
	if target < 1 {
		return 1, true
	}
	return target, true
}

func closer(v, best, target int) bool {
	dv, db := abs(v-target), abs(best-target)
	return dv < db || (dv == db && v < best)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (s IntSet) String() string {
	switch s.kind {
	case kindRange:
		if s.step > 1 {
			return fmt.Sprintf("[%d, %d, %d]", s.min, s.max, s.step)
		}
		return fmt.Sprintf("[%d, %d]", s.min, s.max)
	case kindList:
		if len(s.list) == 1 {
			return fmt.Sprint(s.list[0])
		}
		return fmt.Sprint(s.list)
	}
	return "ANY"
}

// FractionSet is the set of rates a peer accepts. The zero value accepts
// anything. Rates with a zero numerator are legal: they mean a still image.
type FractionSet struct {
	kind     setKind
	min, max clock.Rational
	list     []clock.Rational
}

func Fraction(num, den int) FractionSet            { return FractionList(clock.Rational{Num: num, Den: den}) }
func FractionList(v ...clock.Rational) FractionSet { return FractionSet{kind: kindList, list: v} }
func AnyFraction() FractionSet                     { return FractionSet{} }
func FractionRange(min, max clock.Rational) FractionSet {
	return FractionSet{kind: kindRange, min: min, max: max}
}

// Nearest returns the valid member closest to target, ties go to the
// lower rate. Members with a non-positive denominator or a negative
// numerator are never picked.
func (s FractionSet) Nearest(target clock.Rational) (clock.Rational, bool) {
	switch s.kind {
	case kindRange:
		lo, hi := s.min, s.max
		if !hi.Valid() || lo.Den <= 0 {
			return clock.Rational{}, false
		}
		if lo.Num < 0 {
			lo = clock.Rational{Num: 0, Den: 1}
		}
		if lo.Compare(hi) > 0 {
			return clock.Rational{}, false
		}
		if target.Compare(lo) <= 0 {
			return lo, true
		}
		if target.Compare(hi) >= 0 {
			return hi, true
		}
		return target, true
	case kindList:
		var best clock.Rational
		found := false
		t := rat(target)
		for _, v := range s.list {
			if !v.Valid() {
				continue
			}
			if !found || closerRate(v, best, t) {
				best, found = v, true
			}
		}
		return best, found
	}
	if !target.Valid() {
		return clock.Rational{}, false
	}
	return target, true
}

func closerRate(v, best clock.Rational, target *big.Rat) bool {
	dv := new(big.Rat).Sub(rat(v), target)
	db := new(big.Rat).Sub(rat(best), target)
	switch dv.Abs(dv).Cmp(db.Abs(db)) {
	case -1:
		return true
	case 0:
		return v.Compare(best) < 0
	}
	return false
}

func rat(r clock.Rational) *big.Rat { return big.NewRat(int64(r.Num), int64(r.Den)) }

func (s FractionSet) String() string {
	switch s.kind {
	case kindRange:
		return fmt.Sprintf("[%v, %v]", s.min, s.max)
	case kindList:
		if len(s.list) == 1 {
			return s.list[0].String()
		}
		return fmt.Sprint(s.list)
	}
	return "ANY"
}
