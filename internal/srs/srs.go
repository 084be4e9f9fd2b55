package srs

import (
	"math"
	"time"
)

// Rating is the user's response to a card review.
type Rating int

const (
	Again Rating = 1 // forgot
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

const (
	// InitialEase is the ease factor a new card starts with.
	InitialEase = 2.5
	// MinEase is the floor for the ease factor.
	MinEase = 1.3
)

// Valid reports whether r is one of the four known ratings.
func (r Rating) Valid() bool {
	return r >= Again && r <= Easy
}

// State holds the review schedule of a card.
type State struct {
	IntervalDays int
	EaseFactor   float64
	Repetitions  int
	NextReview   time.Time
}

// New returns the schedule of a card that has never been reviewed: due at now.
func New(now time.Time) State {
	return State{
		IntervalDays: 0,
		EaseFactor:   InitialEase,
		Repetitions:  0,
		NextReview:   now.UTC(),
	}
}

// Schedule computes the state after a review graded q at now.
//
// A forgotten card restarts from zero and is due again today. Otherwise the
// first two successful reviews give fixed intervals of 1 and 3 days and later
// ones multiply the previous interval by the ease factor. The ease factor moves
// by 0.1 - (4-q)*0.15 per review and never drops below MinEase.
func Schedule(s State, q Rating, now time.Time) State {
	interval := s.IntervalDays
	reps := s.Repetitions

	if q < Hard {
		reps = 0
		interval = 0
	} else {
		switch reps {
		case 0:
			interval = 1
		case 1:
			interval = 3
		default:
			interval = int(math.Round(float64(interval) * s.EaseFactor))
		}
		reps++
	}

	ease := math.Max(MinEase, s.EaseFactor+(0.1-float64(Easy-q)*0.15))

	return State{
		IntervalDays: interval,
		EaseFactor:   math.Round(ease*100) / 100,
		Repetitions:  reps,
		NextReview:   NextDueDate(now, interval),
	}
}

// NextDueDate adds days calendar days to now.
func NextDueDate(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, days)
}
