package service

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateDetector_WindowBoundary(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	window := time.Duration(entity.DuplicateWindowDays) * 24 * time.Hour

	tests := []struct {
		name      string
		createdAt time.Time
		want      bool
	}{
		{"29 days ago", now.AddDate(0, 0, -29), true},
		{"exactly 30 days ago", now.Add(-window), true},
		{"30 days and 1 second ago", now.Add(-window - time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeDocRepo(&entity.Document{
				ID:        "prior",
				Status:    entity.DocumentStatusProcessed,
				CreatedAt: tt.createdAt,
				Extracted: entity.ExtractedFields{VendorName: "Acme", Amount: 99.99},
			})
			d := NewDuplicateDetector(repo, &mockLogger{}).(*duplicateDetectorImpl)
			d.now = func() time.Time { return now }

			got := d.FindDuplicate(context.Background(), "Acme", 99.99, entity.DuplicateWindowDays)
			assert.Equal(t, tt.want, got != nil)
		})
	}
}

func TestDuplicateDetector_ExactMatchOnly(t *testing.T) {
	now := time.Now()
	repo := newFakeDocRepo(&entity.Document{
		ID:        "prior",
		CreatedAt: now.Add(-time.Hour),
		Extracted: entity.ExtractedFields{VendorName: "Acme Corp", Amount: 10},
	})
	d := NewDuplicateDetector(repo, &mockLogger{})
	ctx := context.Background()

	assert.Nil(t, d.FindDuplicate(ctx, "Acme", 10, 30))
	assert.Nil(t, d.FindDuplicate(ctx, "Acme Corp", 10.5, 30))
	assert.Nil(t, d.FindDuplicate(ctx, "", 10, 30))

	match := d.FindDuplicate(ctx, "Acme Corp", 10, 0)
	require.NotNil(t, match)
	assert.Equal(t, "prior", match.ID)
}
