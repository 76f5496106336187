package bot

import (
	"context"
	"errors"

	"fitness-bot/internal/profile"
)

type progress struct {
	level   int
	totalXP int
}

// watchLevel follows the user's profile and announces every level reached. One watcher per user. The
// baseline is read before subscribing, so a change that coalesces with the first snapshot is still seen.
// The feed can repeat identical snapshots; only a changed (level, total XP) counts.
func (t *TelegramBot) watchLevel(userID, chatID int64, locale string) {
	t.watchMutex.Lock()
	if _, ok := t.watchers[userID]; ok {
		t.watchMutex.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.watchers[userID] = cancel
	t.watchMutex.Unlock()

	p, err := t.deps.Profiles.Get(ctx, uid(userID))
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			t.logger.Errorw("Failed to read profile for level watch", "user_id", userID, "error", err)
		}
		t.unwatch(userID)
		return
	}
	last := progress{level: p.Level, totalXP: p.TotalXP}

	updates, err := t.deps.Profiles.Subscribe(ctx, uid(userID))
	if err != nil {
		t.logger.Errorw("Failed to watch profile", "user_id", userID, "error", err)
		t.unwatch(userID)
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.unwatch(userID)

		for u := range updates {
			if u.Err != nil {
				t.logger.Warnw("Profile feed error", "user_id", userID, "error", u.Err)
				continue
			}
			if u.Profile == nil {
				// profile deleted; nothing to announce until it comes back
				continue
			}

			cur := progress{level: u.Profile.Level, totalXP: u.Profile.TotalXP}
			if cur == last {
				continue
			}
			if cur.level > last.level {
				t.send(chatID, levelUpText(locale, cur.level))
			}
			last = cur
		}
	}()
}

func (t *TelegramBot) unwatch(userID int64) {
	t.watchMutex.Lock()
	defer t.watchMutex.Unlock()
	if cancel, ok := t.watchers[userID]; ok {
		cancel()
		delete(t.watchers, userID)
	}
}
