package model

import "time"

// DailyMetric holds subjective per-day measurements, unique per (email, date).
type DailyMetric struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Date        string    `json:"date"` // YYYY-MM-DD
	MorningMood *string   `json:"morningMoodSubjective,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MetricPatch carries the fields to overwrite on upsert; nil fields are left alone.
type MetricPatch struct {
	MorningMood *string
}

// MoodOption is one of the one-tap mood choices offered in a briefing.
type MoodOption struct {
	Emoji string
	Value string
}

// MoodOptions lists the choices in display order.
var MoodOptions = []MoodOption{
	{Emoji: "🤩", Value: "Amazing"},
	{Emoji: "😊", Value: "Good"},
	{Emoji: "🙂", Value: "Okay"},
	{Emoji: "😟", Value: "Down"},
	{Emoji: "😢", Value: "Terrible"},
}
