package model

import "time"

// User is a messaging-platform identity that has talked to the bot.
//
// WHY TelegramID int64?
// Telegram user IDs can exceed 2^31, so int64 is required. The ID is also the
// store's uniqueness key: at most one User exists per TelegramID.
//
// Username is the sender's @handle at first contact and may be empty; not every
// Telegram account has one.
//
// IsAdmin is never set by a chat command. It is granted out-of-band, either by
// seeding BOT_ADMIN_IDS at startup or with `botctl promote`.
type User struct {
	TelegramID int64     `json:"telegramId"`
	Username   string    `json:"username"`
	IsAdmin    bool      `json:"isAdmin"`
	CreatedAt  time.Time `json:"createdAt"`
}
