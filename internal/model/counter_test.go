package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter_KeepsFirstSeenOrder(t *testing.T) {
	c := NewCounter[string]()
	c.Inc("sv_P2")
	c.Inc("Untagged")
	c.Inc("sv_P2")
	c.Add("email", 3)

	assert.Equal(t, []string{"sv_P2", "Untagged", "email"}, c.Keys())
	assert.Equal(t, uint64(2), c.Get("sv_P2"))
	assert.Equal(t, uint64(0), c.Get("absent"))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, uint64(6), c.Total())

	var seen []string
	c.Each(func(k string, n uint64) { seen = append(seen, k) })
	assert.Equal(t, c.Keys(), seen)
}

func TestLineStats_TotalSkipped(t *testing.T) {
	s := LineStats{Skipped: map[SkipReason]uint64{SkipNoData: 2, SkipMalformed: 1}}
	assert.Equal(t, uint64(3), s.TotalSkipped())
	assert.Equal(t, "unknown-protocol", SkipUnknownProtocol.String())
}
