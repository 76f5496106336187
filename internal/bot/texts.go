package bot

import (
	"fmt"
	"strings"

	"fitness-bot/internal/models"
	"fitness-bot/internal/profile"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func localeOf(u *tgbotapi.User) string {
	if u != nil && strings.HasPrefix(strings.ToLower(u.LanguageCode), "tr") {
		return "tr"
	}
	return "en"
}

// pick returns the Turkish text for the tr locale and the English one otherwise.
func pick(locale, en, tr string) string {
	if locale == "tr" {
		return tr
	}
	return en
}

func welcomeText(locale, name string) string {
	return pick(locale,
		fmt.Sprintf("👋 Welcome, %s! Log your sets with /done, check your progress with /profile and ask the coach for a routine with /generate.", name),
		fmt.Sprintf("👋 Hoş geldin, %s! Setlerini /done ile kaydet, ilerlemeni /profile ile gör ve /generate ile koçtan program iste.", name),
	)
}

func helpText(locale string) string {
	return pick(locale,
		"/profile - level, XP and credits\n"+
			"/program - your active program\n"+
			"/done <exerciseId> <set> - complete a set (+XP)\n"+
			"/reset - start a new training cycle\n"+
			"/coach <question> - ask the AI coach\n"+
			"/generate <goal> - build a new program (1 credit)\n"+
			"/revise <change> - change your program (1 credit)\n"+
			"/credits - remaining credits\n"+
			"/buy - credit packs and Premium",
		"/profile - seviye, XP ve krediler\n"+
			"/program - aktif programın\n"+
			"/done <egzersizId> <set> - seti tamamla (+XP)\n"+
			"/reset - yeni antrenman döngüsü başlat\n"+
			"/coach <soru> - yapay zeka koça sor\n"+
			"/generate <hedef> - yeni program oluştur (1 kredi)\n"+
			"/revise <değişiklik> - programını değiştir (1 kredi)\n"+
			"/credits - kalan krediler\n"+
			"/buy - kredi paketleri ve Premium",
	)
}

func creditsLine(locale string, p *models.Profile) string {
	if p.IsPremium {
		return pick(locale, "💎 Premium: unlimited generations", "💎 Premium: sınırsız oluşturma")
	}
	return pick(locale,
		fmt.Sprintf("🎟 Credits: %d", p.Credits),
		fmt.Sprintf("🎟 Kredi: %d", p.Credits),
	)
}

func profileText(locale string, p *models.Profile, xpPerLevel int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏋️ %s\n", p.DisplayName)
	fmt.Fprintf(&b, pick(locale, "Level %d · %d/%d XP (total %d)\n", "Seviye %d · %d/%d XP (toplam %d)\n"),
		p.Level, p.XP, xpPerLevel, p.TotalXP)
	fmt.Fprintf(&b, pick(locale, "🔥 Active days: %d\n", "🔥 Aktif gün: %d\n"), p.ActiveDays)
	b.WriteString(creditsLine(locale, p))
	return b.String()
}

func programText(locale string, p *models.Program) string {
	if len(p.Days) == 0 {
		return pick(locale, "Your program is empty.", "Programın boş.")
	}

	var b strings.Builder
	for i, d := range p.Days {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "📅 %s - %s\n", d.Label, d.Title)
		if d.IsRestDay {
			b.WriteString(pick(locale, "   Rest day\n", "   Dinlenme günü\n"))
			continue
		}
		for _, e := range d.Exercises {
			fmt.Fprintf(&b, "   • %s %dx%d [%s]\n", e.Name, e.Sets, e.Reps, e.ID)
		}
	}
	return b.String()
}

func setDoneText(locale string, res *profile.CompleteSetResult, xpPerLevel int) string {
	if res.AlreadyCompleted {
		return pick(locale, "✔️ Already logged this set.", "✔️ Bu set zaten kaydedildi.")
	}
	return pick(locale,
		fmt.Sprintf("✅ +%d XP · Level %d · %d/%d XP", res.XPGained, res.Level, res.XP, xpPerLevel),
		fmt.Sprintf("✅ +%d XP · Seviye %d · %d/%d XP", res.XPGained, res.Level, res.XP, xpPerLevel),
	)
}

func levelUpText(locale string, level int) string {
	return pick(locale,
		fmt.Sprintf("🎉 Level up! You reached level %d.", level),
		fmt.Sprintf("🎉 Seviye atladın! Artık %d. seviyedesin.", level),
	)
}

func productLabel(locale, id string) string {
	switch id {
	case "credits_5", "credits_15", "credits_30":
		return pick(locale, strings.TrimPrefix(id, "credits_")+" credits", strings.TrimPrefix(id, "credits_")+" kredi")
	case "daily":
		return pick(locale, "Premium · 1 day", "Premium · 1 gün")
	case "weekly":
		return pick(locale, "Premium · 1 week", "Premium · 1 hafta")
	case "monthly":
		return pick(locale, "Premium · 1 month", "Premium · 1 ay")
	default:
		return id
	}
}
