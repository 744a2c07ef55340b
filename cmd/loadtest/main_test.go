package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	lat := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(lat, 50))
	assert.Equal(t, time.Duration(10), percentile(lat, 99))
	assert.Zero(t, percentile(nil, 50))
}

func TestBuildMix(t *testing.T) {
	mix := buildMix([]int{7})
	kinds := map[string]int{}
	for _, r := range mix {
		kinds[r.kind]++
	}
	assert.Equal(t, len(queries), kinds["search"])
	assert.Equal(t, len(patterns), kinds["pattern"])
	assert.Equal(t, 3, kinds["title"])
	assert.Equal(t, 2, kinds["recommend"])
	assert.Contains(t, mix[len(mix)-1].path, "/api/v1/documents/7/popular")
}
