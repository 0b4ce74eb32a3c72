package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeState_Toggle(t *testing.T) {
	assert.Equal(t, EdgeInactive, EdgeActive.Toggle())
	assert.Equal(t, EdgeActive, EdgeInactive.Toggle())
	assert.Equal(t, EdgeActive, EdgeActive.Toggle().Toggle())
}

func TestEdgeState_Scan(t *testing.T) {
	var s EdgeState
	require.NoError(t, s.Scan([]byte("inactive")))
	assert.Equal(t, EdgeInactive, s)

	require.NoError(t, s.Scan("active"))
	assert.True(t, s.IsActive())

	assert.Error(t, s.Scan("pending"))
	assert.Error(t, s.Scan(42))
}

func TestEdgeState_ValueDefaultsToActive(t *testing.T) {
	v, err := EdgeState("").Value()
	require.NoError(t, err)
	assert.Equal(t, "active", v)
}

func TestReviewVote_Apply(t *testing.T) {
	tests := []struct {
		name        string
		state       EdgeState
		helpful     bool
		vote        bool
		wantAction  ToggleAction
		wantState   EdgeState
		wantHelpful bool
	}{
		{"repeat helpful retracts", EdgeActive, true, true, ActionVoteRemoved, EdgeInactive, true},
		{"repeat unhelpful retracts", EdgeActive, false, false, ActionVoteRemoved, EdgeInactive, false},
		{"flip polarity stays active", EdgeActive, true, false, ActionVoted, EdgeActive, false},
		{"inactive same polarity reactivates", EdgeInactive, true, true, ActionVoted, EdgeActive, true},
		{"inactive other polarity reactivates", EdgeInactive, false, true, ActionVoted, EdgeActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &ReviewVote{Edge: Edge{State: tt.state}, IsHelpful: tt.helpful}
			action := v.Apply(tt.vote)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantState, v.State)
			assert.Equal(t, tt.wantHelpful, v.IsHelpful)
		})
	}
}

func TestValidRating(t *testing.T) {
	assert.False(t, ValidRating(0))
	assert.True(t, ValidRating(1))
	assert.True(t, ValidRating(5))
	assert.False(t, ValidRating(6))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, HTTPStatus(NewValidationError("bad")))
	assert.Equal(t, 404, HTTPStatus(NewNotFoundError("Post", 1)))
	assert.Equal(t, 409, HTTPStatus(NewConflictError("dup")))
	assert.Equal(t, 502, HTTPStatus(NewUpstreamError("media store", assert.AnError)))
	assert.Equal(t, 500, HTTPStatus(assert.AnError))
	assert.True(t, IsNotFound(NewNotFoundError("Review", "x")))
}
