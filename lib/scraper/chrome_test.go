package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVisitDays_SkipsFailedDay(t *testing.T) {
	var opened []string
	err := visitDays(context.Background(), zap.NewNop(), "u", []string{"2025-01-15", "2025-01-16", "2025-01-17"}, func(date string) (int, error) {
		opened = append(opened, date)
		if date == "2025-01-16" {
			return 0, errors.New("node not found")
		}
		return 2, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-15", "2025-01-16", "2025-01-17"}, opened)
}

func TestVisitDays_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var opened []string
	err := visitDays(ctx, zap.NewNop(), "u", []string{"2025-01-15", "2025-01-16"}, func(date string) (int, error) {
		opened = append(opened, date)
		cancel()
		return 0, context.Canceled
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"2025-01-15"}, opened)
}
