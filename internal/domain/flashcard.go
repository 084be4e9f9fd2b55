package domain

import "time"

// Flashcard is a single front/back card owned by a project.
// IntervalDays, EaseFactor and Repetitions carry the review schedule.
type Flashcard struct {
	ID           string    `json:"id"`
	Project      string    `json:"project"`
	Front        string    `json:"front"`
	Back         string    `json:"back"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	NextReview   time.Time `json:"next_review"`
	IntervalDays int       `json:"interval_days"`
	EaseFactor   float64   `json:"ease_factor"`
	Repetitions  int       `json:"repetitions"`
}

// HasTag reports whether the card is tagged with tag.
func (c Flashcard) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsDue reports whether the card should be reviewed at now.
func (c Flashcard) IsDue(now time.Time) bool {
	return !c.NextReview.After(now)
}

// Project groups flashcards by name. Memory is freeform text kept alongside
// the project; older documents may not carry it.
type Project struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Memory      string    `json:"memory"`
	CreatedAt   time.Time `json:"created_at"`
}

// Deck is the whole persisted document: every project and every flashcard.
type Deck struct {
	Projects   []Project   `json:"projects"`
	Flashcards []Flashcard `json:"flashcards"`
}

// FindProject returns the project named name, or nil.
func (d *Deck) FindProject(name string) *Project {
	for i := range d.Projects {
		if d.Projects[i].Name == name {
			return &d.Projects[i]
		}
	}
	return nil
}

// FindFlashcard returns the index of the card with id, or -1.
func (d *Deck) FindFlashcard(id string) int {
	for i := range d.Flashcards {
		if d.Flashcards[i].ID == id {
			return i
		}
	}
	return -1
}

// ProjectNames lists project names in stored order.
func (d *Deck) ProjectNames() []string {
	names := make([]string, 0, len(d.Projects))
	for _, p := range d.Projects {
		names = append(names, p.Name)
	}
	return names
}
