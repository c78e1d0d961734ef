package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRetryTimeBacksOffExponentially(t *testing.T) {
	now := time.Now()

	first := nextRetryTime(1)
	third := nextRetryTime(3)

	assert.WithinDuration(t, now.Add(2*time.Second), first, 500*time.Millisecond)
	assert.WithinDuration(t, now.Add(8*time.Second), third, 500*time.Millisecond)
}

func TestNextRetryTimeIsCapped(t *testing.T) {
	now := time.Now()

	capped := nextRetryTime(20)

	assert.WithinDuration(t, now.Add(300*time.Second), capped, 500*time.Millisecond)
}
