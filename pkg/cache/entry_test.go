package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_Age(t *testing.T) {
	tests := []struct {
		name     string
		cachedAt time.Time
		wantMin  time.Duration
		wantMax  time.Duration
	}{
		{
			name:     "zero timestamp",
			cachedAt: time.Time{},
			wantMin:  0,
			wantMax:  0,
		},
		{
			name:     "one hour old",
			cachedAt: time.Now().Add(-1 * time.Hour),
			wantMin:  59 * time.Minute,
			wantMax:  61 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{CachedAt: tt.cachedAt}
			got := entry.Age()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("Age() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}
