// Package ingest turns free-form AI replies into program days.
//
// Replies are untrusted: they may wrap the JSON in markdown fences or prose, use strings for numbers, or
// leave fields out. Parse extracts the first JSON array of day objects and normalizes it; it never calls out
// to the network.
package ingest

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"fitness-bot/internal/models"

	"github.com/spf13/cast"
)

const (
	DefaultSets = 3
	DefaultReps = 10

	// MaxReplyBytes bounds the reply Parse accepts.
	MaxReplyBytes = 64 << 10
	// maxCandidates is how many '[' positions extractArray tries before giving up.
	maxCandidates = 32

	noteEN = "Created by AI."
	noteTR = "AI tarafından oluşturuldu."
)

var (
	ErrMalformedResponse = errors.New("malformed AI response")
	ErrEmptyProgram      = errors.New("AI response contains no days")

	fenceRe = regexp.MustCompile("(?i)```(?:json)?")
)

type IDFunc func() string

type Ingester struct {
	NewID IDFunc
}

func New() *Ingester {
	return &Ingester{NewID: models.NewID}
}

// Parse normalizes text with time-ordered ids.
func Parse(text, locale string) ([]models.Day, error) {
	return New().Parse(text, locale)
}

func (in *Ingester) Parse(text, locale string) ([]models.Day, error) {
	raw, err := extractArray(text)
	if err != nil {
		return nil, err
	}

	days := make([]models.Day, 0, len(raw))
	for _, r := range raw {
		var obj map[string]any
		if err := json.Unmarshal(r, &obj); err != nil || obj == nil {
			continue
		}
		days = append(days, in.day(obj, locale))
	}
	if len(days) == 0 {
		return nil, ErrEmptyProgram
	}
	return days, nil
}

// extractArray drops code fences and decodes the first '[' that starts a complete JSON array. Only the first
// maxCandidates brackets are tried.
func extractArray(text string) ([]json.RawMessage, error) {
	if len(text) > MaxReplyBytes {
		return nil, ErrMalformedResponse
	}
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))

	i := strings.IndexByte(cleaned, '[')
	for tries := 0; i >= 0 && tries < maxCandidates; tries++ {
		var raw []json.RawMessage
		if err := json.NewDecoder(strings.NewReader(cleaned[i:])).Decode(&raw); err == nil {
			return raw, nil
		}
		next := strings.IndexByte(cleaned[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, ErrMalformedResponse
}

func (in *Ingester) day(obj map[string]any, locale string) models.Day {
	d := models.Day{
		ID:        in.NewID(),
		Label:     strings.TrimSpace(cast.ToString(obj["label"])),
		Title:     strings.TrimSpace(cast.ToString(obj["title"])),
		IsRestDay: cast.ToBool(obj["isRestDay"]),
		Exercises: []models.Exercise{},
	}

	list, _ := obj["exercises"].([]any)
	for _, item := range list {
		ex, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(cast.ToString(ex["name"]))
		if name == "" {
			continue
		}
		d.Exercises = append(d.Exercises, models.Exercise{
			ID:      in.NewID(),
			Name:    name,
			Sets:    positiveInt(ex["sets"], DefaultSets),
			Reps:    positiveInt(ex["reps"], DefaultReps),
			Note:    note(ex["note"], locale),
			Muscles: muscles(ex["muscles"]),
			Gym:     gym(ex["gym"]),
		})
	}
	return d
}

// positiveInt reads numbers, numeric strings and strings with a numeric prefix ("10 reps").
// Anything else, or a value below 1, yields def.
func positiveInt(v any, def int) int {
	var n int
	switch t := v.(type) {
	case nil, bool:
		return def
	case string:
		digits := leadingDigits(strings.TrimSpace(t))
		i, err := strconv.Atoi(digits)
		if err != nil {
			return def
		}
		n = i
	default:
		i, err := cast.ToIntE(t)
		if err != nil {
			return def
		}
		n = i
	}
	if n < 1 {
		return def
	}
	return n
}

func leadingDigits(s string) string {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

func note(v any, locale string) string {
	if n := strings.TrimSpace(cast.ToString(v)); n != "" {
		return n
	}
	return DefaultNote(locale)
}

// DefaultNote is the tip attached to AI exercises that came without one.
func DefaultNote(locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "tr") {
		return noteTR
	}
	return noteEN
}

func gym(v any) string {
	if g := strings.TrimSpace(cast.ToString(v)); g != "" {
		return g
	}
	return models.DefaultGym
}

func muscles(v any) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []any:
		parts = cast.ToStringSlice(t)
	default:
		return nil
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
