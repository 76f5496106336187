package coach

import (
	"errors"
	"strings"

	"fitness-bot/internal/ingest"
	"fitness-bot/internal/profile"
)

type ErrorClass int

const (
	ClassGeneric ErrorClass = iota
	// ClassUpgrade means credits ran out; the user should see the upgrade offer.
	ClassUpgrade
	// ClassRetry means the AI reply was unusable; asking again may work.
	ClassRetry
)

func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, profile.ErrInsufficientCredits):
		return ClassUpgrade
	case errors.Is(err, ingest.ErrMalformedResponse), errors.Is(err, ingest.ErrEmptyProgram):
		return ClassRetry
	default:
		return ClassGeneric
	}
}

// UserMessage renders err for the user in the given locale.
func UserMessage(err error, locale string) string {
	tr := strings.HasPrefix(strings.ToLower(locale), "tr")

	switch Classify(err) {
	case ClassUpgrade:
		if tr {
			return "💎 Krediniz bitti. Devam etmek için kredi satın alın veya Premium'a geçin: /buy"
		}
		return "💎 You are out of credits. Buy a credit pack or go Premium to continue: /buy"
	case ClassRetry:
		if tr {
			return "🤔 Yapay zeka anlaşılır bir program döndürmedi. Lütfen tekrar deneyin."
		}
		return "🤔 The AI did not return a usable program. Please try again."
	default:
		if tr {
			return "❌ Bir hata oluştu. Lütfen daha sonra tekrar deneyin."
		}
		return "❌ Something went wrong. Please try again later."
	}
}
