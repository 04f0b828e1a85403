package format

import (
	"testing"
	"time"
)

func TestMessageTime(t *testing.T) {
	now := time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC) // Wednesday
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"today", time.Date(2026, 3, 11, 9, 5, 0, 0, time.UTC), "09:05"},
		{"just after midnight", time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC), "00:01"},
		{"yesterday late", time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC), "Yesterday"},
		{"this week", time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), "Saturday"},
		{"older", time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC), "Feb 20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageTime(tt.t, now); got != tt.want {
				t.Errorf("MessageTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLastSeen(t *testing.T) {
	now := time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "now"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{49 * time.Hour, "2d"},
		{10 * 24 * time.Hour, "Mar 1"},
	}
	for _, tt := range tests {
		if got := LastSeen(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("LastSeen(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if got := LastSeen(time.Time{}, now); got != "" {
		t.Errorf("LastSeen(zero) = %q", got)
	}
}

func TestFileSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := FileSize(tt.n); got != tt.want {
			t.Errorf("FileSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
