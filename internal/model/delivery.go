package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// CategoryDailyBriefing is the only newsletter category sent today.
const CategoryDailyBriefing = "daily_briefing"

// DeliveryLog records that a piece of content was handed off for sending.
// (UserID, Category, Fingerprint) is unique; OpenedAt is set at most once.
type DeliveryLog struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Category    string     `json:"category"`
	Content     string     `json:"content"`
	Fingerprint string     `json:"fingerprint"`
	SentAt      time.Time  `json:"sentAt"`
	OpenedAt    *time.Time `json:"openedAt,omitempty"`
}

// Fingerprint is the hex SHA-256 of content, used for deduplication.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// SubscriptionPreference is the newsletter opt-in state for one address,
// keyed case-insensitively.
type SubscriptionPreference struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Subscribed     bool       `json:"subscribed"`
	SubscribedAt   *time.Time `json:"subscribedAt,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty"`
}
