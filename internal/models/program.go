// internal/models/program.go
package models

import "time"

const DefaultGym = "-"

type Exercise struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Sets    int      `json:"sets"`
	Reps    int      `json:"reps"`
	Note    string   `json:"note"`
	Muscles []string `json:"muscles,omitempty"`
	Gym     string   `json:"gym"`
}

type Day struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Title     string     `json:"title"`
	IsRestDay bool       `json:"isRestDay"`
	Exercises []Exercise `json:"exercises"`
}

type Program struct {
	Days      []Day     `json:"days"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DayPatch is a partial day update; nil fields are left untouched.
type DayPatch struct {
	Label     *string     `json:"label,omitempty"`
	Title     *string     `json:"title,omitempty"`
	IsRestDay *bool       `json:"isRestDay,omitempty"`
	Exercises *[]Exercise `json:"exercises,omitempty"`
}

type ExercisePatch struct {
	Name    *string   `json:"name,omitempty"`
	Sets    *int      `json:"sets,omitempty"`
	Reps    *int      `json:"reps,omitempty"`
	Note    *string   `json:"note,omitempty"`
	Muscles *[]string `json:"muscles,omitempty"`
	Gym     *string   `json:"gym,omitempty"`
}

func (d Day) Clone() Day {
	c := d
	if d.Exercises == nil {
		return c
	}
	c.Exercises = make([]Exercise, len(d.Exercises))
	for i, e := range d.Exercises {
		c.Exercises[i] = e.Clone()
	}
	return c
}

func (e Exercise) Clone() Exercise {
	c := e
	if e.Muscles != nil {
		c.Muscles = append([]string(nil), e.Muscles...)
	}
	return c
}

func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	c := *p
	c.Days = CloneDays(p.Days)
	return &c
}

func CloneDays(days []Day) []Day {
	if days == nil {
		return nil
	}
	out := make([]Day, len(days))
	for i, d := range days {
		out[i] = d.Clone()
	}
	return out
}

func (p DayPatch) Apply(d *Day) {
	if p.Label != nil {
		d.Label = *p.Label
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.IsRestDay != nil {
		d.IsRestDay = *p.IsRestDay
	}
	if p.Exercises != nil {
		d.Exercises = make([]Exercise, len(*p.Exercises))
		for i, e := range *p.Exercises {
			d.Exercises[i] = e.Clone()
		}
	}
}

func (p ExercisePatch) Apply(e *Exercise) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Sets != nil {
		e.Sets = *p.Sets
	}
	if p.Reps != nil {
		e.Reps = *p.Reps
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.Muscles != nil {
		e.Muscles = append([]string(nil), (*p.Muscles)...)
	}
	if p.Gym != nil {
		e.Gym = *p.Gym
	}
}
