package goal

import (
	"fmt"

	"github.com/hupe1980/personasim/core"
)

// FaithMix is the requested split between good-faith and bad-faith goals.
type FaithMix struct {
	GoodFaith int `json:"good_faith"`
	BadFaith  int `json:"bad_faith"`
}

// EvenMix splits n goals evenly; an odd goal goes to good-faith.
func EvenMix(n int) FaithMix {
	if n <= 0 {
		return FaithMix{}
	}
	return FaithMix{GoodFaith: n - n/2, BadFaith: n / 2}
}

// Total returns the number of goals in the mix.
func (m FaithMix) Total() int { return m.GoodFaith + m.BadFaith }

// IsZero reports whether no split was requested.
func (m FaithMix) IsZero() bool { return m.GoodFaith == 0 && m.BadFaith == 0 }

func (m FaithMix) String() string {
	return fmt.Sprintf("%d good-faith/%d bad-faith", m.GoodFaith, m.BadFaith)
}

// mixOf counts the faith types of goals.
func mixOf(goals []core.Goal) FaithMix {
	var m FaithMix
	for _, g := range goals {
		if g.FaithType == core.GoodFaith {
			m.GoodFaith++
		} else {
			m.BadFaith++
		}
	}
	return m
}
