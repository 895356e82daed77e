package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysObserved(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		age      time.Duration
		daysBack int
		want     int
	}{
		{"brand new", 0, 30, 1},
		{"one hour", time.Hour, 30, 1},
		{"just over a day rounds up", 25 * time.Hour, 30, 2},
		{"exactly two days", 48 * time.Hour, 30, 2},
		{"older than window", 400 * 24 * time.Hour, 30, 30},
		{"created in the future", -time.Hour, 30, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, daysObserved(now.Add(-tt.age), now, tt.daysBack))
		})
	}
}
