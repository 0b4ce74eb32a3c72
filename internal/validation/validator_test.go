package validation

import (
	"testing"

	"wanderfeed/internal/models"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Caption  string   `json:"caption" validate:"required,max=10"`
	PostType string   `json:"post_type" validate:"required,post_type"`
	Rating   int      `json:"rating" validate:"gte=1,lte=5"`
	Tags     []string `json:"tags" validate:"max=2"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantMsg string
	}{
		{"valid", sample{Caption: "ok", PostType: "food", Rating: 3}, ""},
		{"missing caption", sample{PostType: "food", Rating: 3}, "caption is required"},
		{"bad post type", sample{Caption: "ok", PostType: "vlog", Rating: 3}, "post_type must be one of"},
		{"rating above range", sample{Caption: "ok", PostType: "tip", Rating: 6}, "rating must be less than or equal to 5"},
		{"too many tags", sample{Caption: "ok", PostType: "tip", Rating: 1, Tags: []string{"a", "b", "c"}}, "tags must be at most 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
