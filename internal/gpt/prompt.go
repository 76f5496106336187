package gpt

import (
	"fmt"
	"strings"
)

func isTurkish(locale string) bool {
	return strings.HasPrefix(strings.ToLower(locale), "tr")
}

func SystemPrompt(locale string) string {
	if isTurkish(locale) {
		return "Sen bir fitness uygulamasının yapay zeka antrenörüsün. " +
			"Türkçe cevap ver. Kısa, öz ve motive edici ol. " +
			"Sadece çok önemli kelimeleri **kalın** yap. " +
			"Maddeler için her zaman yeni satır ve tek bir yıldız (*) kullan. " +
			"Kullanıcının fitness hedeflerine ulaşmasına yardım et."
	}
	return "You are the AI coach of a fitness app. " +
		"Reply in English. Be concise, direct and motivating. " +
		"Only use **bold** for major emphasis. " +
		"For lists, always use a new line and a single asterisk (*)."
}

// ProgramPrompt asks for a whole program as a bare JSON array of days.
func ProgramPrompt(userText, locale string) string {
	userText = strings.TrimSpace(userText)
	if isTurkish(locale) {
		return fmt.Sprintf(`Kullanıcı şunu söyledi: %q

Bu bilgiye göre kullanıcının hedefine uygun (3-7 gün arası) kapsamlı bir antrenman programı oluştur.
ÖNEMLİ: Gün etiketleri için "PZT", "SAL" gibi KISA formatlar kullan.
"HAFTA SONU" diye bir gün asla oluşturma. Cumartesi (CMT) ve Pazar (PAZ) ayrı ayrı olmalı.
Dinlenme günlerini de ekle ve "isRestDay": true yap.

JSON formatında yanıt ver:
[{"label":"PZT","title":"Göğüs","exercises":[{"name":"Bench Press","sets":4,"reps":10,"note":"Dirsekleri içeri al."}]}]

Sadece JSON döndür.`, userText)
	}
	return fmt.Sprintf(`User said: %q

Create a comprehensive workout program (3-7 days).
IMPORTANT: Use SHORT day labels: "MON", "TUE", "WED" etc.
NEVER create a "WEEKEND" day. Saturday (SAT) and Sunday (SUN) must be separate.
Include rest days in the output with "isRestDay": true.

Reply in JSON format:
[{"label":"MON","title":"Chest","exercises":[{"name":"Bench Press","sets":4,"reps":10,"note":"Tips here."}]}]

Only return JSON.`, userText)
}

// RevisePrompt asks for the full updated program, given the current one as JSON.
func RevisePrompt(userText, currentProgramJSON, locale string) string {
	userText = strings.TrimSpace(userText)
	if isTurkish(locale) {
		return fmt.Sprintf(`Mevcut program:
%s

Kullanıcı şu değişikliği istedi: %q

Programın TAMAMINI güncellenmiş haliyle aynı JSON formatında döndür. Sadece JSON döndür.`, currentProgramJSON, userText)
	}
	return fmt.Sprintf(`Current program:
%s

The user asked for this change: %q

Return the WHOLE updated program in the same JSON format. Only return JSON.`, currentProgramJSON, userText)
}
