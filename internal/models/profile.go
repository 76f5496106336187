// internal/models/profile.go
package models

import (
	"fmt"
	"time"
)

const (
	XPPerSet         = 25
	XPPerLevel       = 1000
	DefaultCredits   = 3
	UnlimitedCredits = 999999
	// admin entitlement is considered lacking below this balance
	AdminCreditFloor   = 1000
	DefaultDisplayName = "Athlete"
)

type Profile struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"displayName"`
	Email          string     `json:"email"`
	PhotoURL       string     `json:"photoURL,omitempty"`
	Level          int        `json:"level"`
	XP             int        `json:"xp"`
	TotalXP        int        `json:"totalXp"`
	ActiveDays     int        `json:"activeDays"`
	LastActiveDate *time.Time `json:"lastActiveDate"`
	CompletedSets  []string   `json:"completedSets"`
	Credits        int        `json:"credits"`
	IsPremium      bool       `json:"isPremium"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// SetKey builds the completion key for one set of one exercise.
func SetKey(exerciseID string, setIndex int) string {
	return fmt.Sprintf("%s_set%d", exerciseID, setIndex)
}

func (p *Profile) HasCompleted(key string) bool {
	for _, k := range p.CompletedSets {
		if k == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so callers can mutate without touching shared state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastActiveDate != nil {
		t := *p.LastActiveDate
		c.LastActiveDate = &t
	}
	c.CompletedSets = append([]string(nil), p.CompletedSets...)
	return &c
}

type NewProfile struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
}

type ProfilePatch struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}
