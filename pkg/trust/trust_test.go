package trust_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssbking/personal-digital-authority/pkg/trust"
)

func TestSnapshot_Meets(t *testing.T) {
	cases := []struct {
		name  string
		score float64
		min   float64
		want  bool
	}{
		{"above threshold", 0.9, 0.5, true},
		{"exactly at threshold", 0.5, 0.5, true},
		{"below threshold", 0.4, 0.5, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := trust.Snapshot{TrustScore: tc.score, MinimumRequired: tc.min}
			assert.Equal(t, tc.want, s.Meets())
		})
	}
}

func TestStaticRevocationList_IsRevoked(t *testing.T) {
	list := trust.NewStaticRevocationList("task-a", "task-b")

	assert.True(t, list.IsRevoked("task-a"))
	assert.True(t, list.IsRevoked("task-b"))
	assert.False(t, list.IsRevoked("task-c"))
}

func TestStaticRevocationList_EmptyListRevokesNothing(t *testing.T) {
	list := trust.NewStaticRevocationList()
	assert.False(t, list.IsRevoked("anything"))
}
