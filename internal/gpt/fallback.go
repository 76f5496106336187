package gpt

import (
	"context"
	"strings"
)

var _ Generator = (*Fallback)(nil)

// Fallback answers without a model, with canned replies. Used when no API key is configured.
type Fallback struct{}

func NewFallback() *Fallback {
	return &Fallback{}
}

func (f *Fallback) Generate(ctx context.Context, prompt, locale string, _ GenerateContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if isProgramRequest(prompt) {
		if isTurkish(locale) {
			return fallbackProgramTR, nil
		}
		return fallbackProgramEN, nil
	}
	if isTurkish(locale) {
		return "Harika bir hedef! Sana bu konuda yardımcı olabilirim. Programını oluşturmak için /generate komutunu kullanabilir veya spesifik sorular sorabilirsin.", nil
	}
	return "Great goal! I can help you with that. Use /generate to build your routine or ask specific questions.", nil
}

func isProgramRequest(prompt string) bool {
	return strings.Contains(prompt, "JSON") || strings.Contains(strings.ToLower(prompt), "program")
}

const fallbackProgramEN = `[
{"label":"MON","title":"Chest & Triceps","exercises":[{"name":"Bench Press","sets":4,"reps":10,"note":"Retract shoulders."},{"name":"Tricep Pushdown","sets":3,"reps":12,"note":"Lock elbows."}]},
{"label":"WED","title":"Back & Biceps","exercises":[{"name":"Lat Pulldown","sets":4,"reps":12,"note":"Pull to chest."},{"name":"Barbell Curl","sets":3,"reps":10,"note":"Strict form."}]},
{"label":"FRI","title":"Legs & Shoulders","exercises":[{"name":"Squat","sets":4,"reps":10,"note":"Drive through heels."},{"name":"Overhead Press","sets":4,"reps":8,"note":"Tight core."}]},
{"label":"SUN","title":"Active Rest","isRestDay":true,"exercises":[]}
]`

const fallbackProgramTR = `[
{"label":"PZT","title":"Göğüs & Triceps","exercises":[{"name":"Bench Press","sets":4,"reps":10,"note":"Omuzları geri çek."},{"name":"Tricep Pushdown","sets":3,"reps":12,"note":"Dirsekleri sabitle."}]},
{"label":"SAL","title":"Sırt & Biceps","exercises":[{"name":"Lat Pulldown","sets":4,"reps":12,"note":"Göğsüne kadar çek."},{"name":"Barbell Curl","sets":3,"reps":10,"note":"Belden güç alma."}]},
{"label":"ÇAR","title":"Dinlenme","isRestDay":true,"exercises":[]},
{"label":"PER","title":"Bacak","exercises":[{"name":"Squat","sets":4,"reps":10,"note":"Topuklara bas."},{"name":"Leg Extension","sets":4,"reps":15,"note":"Üst noktada sık."}]},
{"label":"CUM","title":"Omuz & Karın","exercises":[{"name":"Overhead Press","sets":4,"reps":8,"note":"Karın kaslarını sık."},{"name":"Plank","sets":3,"reps":60,"note":"Düz dur."}]},
{"label":"CMT","title":"Aktif Dinlenme","isRestDay":true,"exercises":[]},
{"label":"PAZ","title":"Full Body","exercises":[{"name":"Burpee","sets":3,"reps":15,"note":"Patlayıcı ol."}]}
]`
