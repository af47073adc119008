package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistrictLimiterDisabled(t *testing.T) {
	l := newDistrictLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("d1"))
	}
	var nilLimiter *districtLimiter
	assert.True(t, nilLimiter.Allow("d1"))
}

func TestDistrictLimiterBurst(t *testing.T) {
	l := newDistrictLimiter(0.0001, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("d1"))
	}
	assert.False(t, l.Allow("d1"))
	assert.True(t, l.Allow("d2"))
}
