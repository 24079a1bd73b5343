package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"shop-assist-go/internal/model"
)

func TestClassifyPriority(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        string
	}{
		{"payment keyword", "I want a refund for this", model.PriorityHigh},
		{"substring match", "I was double-charged for this", model.PriorityHigh},
		{"case insensitive", "REFUND my money please", model.PriorityHigh},
		{"order keyword", "the item arrived broken", model.PriorityLow},
		{"no keyword", "hello there", model.PriorityLow},
		{"empty", "", model.PriorityLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyPriority(tc.description))
		})
	}
}
