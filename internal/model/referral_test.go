package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanApply(t *testing.T) {
	tests := []struct {
		name       string
		transition ReferralTransition
		state      ReferralState
		allowed    bool
	}{
		{"send from draft", TransitionSend, ReferralStateDraft, true},
		{"send from received", TransitionSend, ReferralStateReceived, false},
		{"send from closed", TransitionSend, ReferralStateClosed, false},
		{"assign from received", TransitionAssign, ReferralStateReceived, true},
		{"assign from in validation", TransitionAssign, ReferralStateInValidation, true},
		{"assign from draft", TransitionAssign, ReferralStateDraft, false},
		{"assign from answered", TransitionAssign, ReferralStateAnswered, false},
		{"unassign from received", TransitionUnassign, ReferralStateReceived, false},
		{"unassign from assigned", TransitionUnassign, ReferralStateAssigned, true},
		{"request validation from processing", TransitionRequestAnswerValidation, ReferralStateProcessing, true},
		{"request validation from received", TransitionRequestAnswerValidation, ReferralStateReceived, false},
		{"perform validation from in validation", TransitionPerformAnswerValidation, ReferralStateInValidation, true},
		{"perform validation from processing", TransitionPerformAnswerValidation, ReferralStateProcessing, false},
		{"publish answer from processing", TransitionPublishAnswer, ReferralStateProcessing, true},
		{"publish answer from answered", TransitionPublishAnswer, ReferralStateAnswered, false},
		{"close from processing", TransitionClose, ReferralStateProcessing, true},
		{"close from draft", TransitionClose, ReferralStateDraft, false},
		{"close from closed", TransitionClose, ReferralStateClosed, false},
		{"update title from splitting", TransitionUpdateTitle, ReferralStateSplitting, true},
		{"update title from answered", TransitionUpdateTitle, ReferralStateAnswered, false},
		{"split from assigned", TransitionSplit, ReferralStateAssigned, true},
		{"split from processing", TransitionSplit, ReferralStateProcessing, false},
		{"confirm split from splitting", TransitionConfirmSplit, ReferralStateSplitting, true},
		{"confirm split from received splitting", TransitionConfirmSplit, ReferralStateReceivedSplitting, true},
		{"confirm split from assigned", TransitionConfirmSplit, ReferralStateAssigned, false},
		{"cancel split from splitting", TransitionCancelSplit, ReferralStateSplitting, true},
		{"close incomplete from draft", TransitionCloseIncomplete, ReferralStateDraft, true},
		{"close incomplete from received", TransitionCloseIncomplete, ReferralStateReceived, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanApply(tt.transition, tt.state))
		})
	}
}

func TestAllowedStates(t *testing.T) {
	assert.Equal(t, []ReferralState{ReferralStateDraft}, AllowedStates(TransitionSend))
	assert.Empty(t, AllowedStates(ReferralTransition("BOGUS")))
}

func TestReferralIsOpen(t *testing.T) {
	open := []ReferralState{
		ReferralStateReceived,
		ReferralStateAssigned,
		ReferralStateProcessing,
		ReferralStateInValidation,
	}
	closed := []ReferralState{
		ReferralStateDraft,
		ReferralStateAnswered,
		ReferralStateClosed,
		ReferralStateSplitting,
		ReferralStateReceivedSplitting,
		ReferralStateIncomplete,
	}

	for _, state := range open {
		r := &Referral{State: state}
		assert.True(t, r.IsOpen(), "state %s should be open", state)
	}
	for _, state := range closed {
		r := &Referral{State: state}
		assert.False(t, r.IsOpen(), "state %s should not be open", state)
	}
}

func TestDueDateFrom(t *testing.T) {
	urgency := &ReferralUrgency{DurationDays: 30}
	sentAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC), urgency.DueDateFrom(sentAt))
}
