package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{StatusOpen, true},
		{StatusInProgress, true},
		{StatusCompleted, true},
		{"done", false},
		{"", false},
		{"Open", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Valid())
		})
	}
}

func TestTask_SetStatus(t *testing.T) {
	t.Run("completing sets completedAt", func(t *testing.T) {
		task := &Task{Status: StatusOpen}
		changed := task.SetStatus(StatusCompleted, fixedNow)

		assert.True(t, changed)
		require.NotNil(t, task.CompletedAt)
		assert.Equal(t, fixedNow, *task.CompletedAt)
	})

	t.Run("reopening clears completedAt", func(t *testing.T) {
		done := fixedNow.Add(-time.Hour)
		task := &Task{Status: StatusCompleted, CompletedAt: &done}
		changed := task.SetStatus(StatusInProgress, fixedNow)

		assert.True(t, changed)
		assert.Nil(t, task.CompletedAt)
	})

	t.Run("same status is not a change", func(t *testing.T) {
		done := fixedNow.Add(-time.Hour)
		task := &Task{Status: StatusCompleted, CompletedAt: &done}
		changed := task.SetStatus(StatusCompleted, fixedNow)

		assert.False(t, changed)
		assert.Equal(t, done, *task.CompletedAt)
	})
}

func TestTask_SetDeadline_NormalisesOffsets(t *testing.T) {
	utc := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	plusOne := time.Date(2025, 1, 1, 11, 0, 0, 0, time.FixedZone("+01:00", 3600))

	task := &Task{Deadline: &utc}
	assert.False(t, task.SetDeadline(&plusOne), "same instant in another offset is unchanged")

	later := utc.Add(time.Minute)
	assert.True(t, task.SetDeadline(&later))
	assert.True(t, task.SetDeadline(nil))
	assert.Nil(t, task.Deadline)
	assert.False(t, task.SetDeadline(nil))
}

func TestParseFixedDeadline(t *testing.T) {
	got, err := ParseFixedDeadline("2025-06-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Equal(*got), "got %v", got)
	assert.Equal(t, time.UTC, got.Location())

	again, err := ParseFixedDeadline(" 2025-06-01 ")
	require.NoError(t, err)
	assert.True(t, got.Equal(*again))

	got, err = ParseFixedDeadline("2025-06-01T08:30:00+02:00")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC).Equal(*got))

	got, err = ParseFixedDeadline("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseFixedDeadline("soon")
	assert.ErrorIs(t, err, ErrDeadlineFormat)
}

func TestParseDeadline(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *time.Time
		wantErr bool
	}{
		{
			name: "empty clears",
			raw:  "",
			want: nil,
		},
		{
			name: "zulu suffix",
			raw:  "2025-01-01T10:00:00Z",
			want: ptrTime(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)),
		},
		{
			name: "offset is normalised to UTC",
			raw:  "2025-01-01T11:00:00+01:00",
			want: ptrTime(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)),
		},
		{
			name: "naive timestamp is read as UTC",
			raw:  "2025-01-01T10:00:00",
			want: ptrTime(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)),
		},
		{
			name: "bare date takes the current time of day",
			raw:  "2025-04-01",
			want: ptrTime(time.Date(2025, 4, 1, 9, 26, 53, 0, time.UTC)),
		},
		{
			name:    "garbage",
			raw:     "next tuesday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDeadline(tt.raw, fixedNow)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDeadlineFormat)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
