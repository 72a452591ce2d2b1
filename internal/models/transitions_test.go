package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceRequestTransitions(t *testing.T) {
	allowed := map[[2]ServiceRequestStatus]bool{
		{SRPendingAssignment, SRAssigned}:  true,
		{SRPendingAssignment, SRCancelled}: true,
		{SRAssigned, SRInProgress}:         true,
		{SRAssigned, SRWaitingStudent}:     true,
		{SRAssigned, SROnHold}:             true,
		{SRAssigned, SRCancelled}:          true,
		{SRInProgress, SRCompleted}:        true,
		{SRInProgress, SRWaitingStudent}:   true,
		{SRInProgress, SROnHold}:           true,
		{SRInProgress, SRCancelled}:        true,
		{SRWaitingStudent, SRInProgress}:   true,
		{SRWaitingStudent, SRCancelled}:    true,
		{SROnHold, SRInProgress}:           true,
		{SROnHold, SRCancelled}:            true,
	}

	for _, from := range AllServiceRequestStatuses {
		for _, to := range AllServiceRequestStatuses {
			want := allowed[[2]ServiceRequestStatus{from, to}]
			assert.Equal(t, want, ServiceRequestCanTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestServiceRequestTerminalStatesHaveNoExits(t *testing.T) {
	assert.Empty(t, ServiceRequestNextStatuses(SRCompleted))
	assert.Empty(t, ServiceRequestNextStatuses(SRCancelled))
}

func TestTaskTransitions(t *testing.T) {
	allowed := map[[2]TaskStatus]bool{
		{TaskPending, TaskInProgress}:            true,
		{TaskPending, TaskCompleted}:             true,
		{TaskInProgress, TaskSubmitted}:          true,
		{TaskInProgress, TaskCompleted}:          true,
		{TaskSubmitted, TaskUnderReview}:         true,
		{TaskSubmitted, TaskRevisionRequired}:    true,
		{TaskSubmitted, TaskCompleted}:           true,
		{TaskUnderReview, TaskRevisionRequired}:  true,
		{TaskUnderReview, TaskCompleted}:         true,
		{TaskRevisionRequired, TaskInProgress}:   true,
		{TaskRevisionRequired, TaskSubmitted}:    true,
	}

	for _, from := range AllTaskStatuses {
		for _, to := range AllTaskStatuses {
			want := allowed[[2]TaskStatus{from, to}]
			assert.Equal(t, want, TaskCanTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestApplicationTransitionsAreStrictlyLinear(t *testing.T) {
	// Only Under Review branches; everything else has at most one exit.
	for _, from := range AllApplicationStatuses {
		next := ApplicationNextStatuses(from)
		if from == AppUnderReview {
			assert.ElementsMatch(t, []ApplicationStatus{AppOfferReceived, AppRejected}, next)
			continue
		}
		assert.LessOrEqual(t, len(next), 1, "status %s", from)
	}

	assert.True(t, ApplicationCanTransition(AppOfferReceived, AppAccepted))
	assert.False(t, ApplicationCanTransition(AppOfferReceived, AppRejected))
	assert.False(t, ApplicationCanTransition(AppOfferReceived, AppVisaProcessing))
	assert.Empty(t, ApplicationNextStatuses(AppCompleted))
	assert.Empty(t, ApplicationNextStatuses(AppRejected))
}

func TestServiceRequestProgressFloor(t *testing.T) {
	assert.Equal(t, 5, ServiceRequestProgressFloor(SRPendingAssignment))
	assert.Equal(t, 15, ServiceRequestProgressFloor(SRAssigned))
	assert.Equal(t, 50, ServiceRequestProgressFloor(SRInProgress))
	assert.Equal(t, 60, ServiceRequestProgressFloor(SRWaitingStudent))
	assert.Equal(t, 100, ServiceRequestProgressFloor(SRCompleted))
	// ON_HOLD and CANCELLED impose no floor.
	assert.Equal(t, 0, ServiceRequestProgressFloor(SROnHold))
	assert.Equal(t, 0, ServiceRequestProgressFloor(SRCancelled))
}

func TestAgentModifiable(t *testing.T) {
	pending := ApprovalPending
	approved := ApprovalApproved

	sr := &ServiceRequest{IsAgentInitiated: false}
	assert.True(t, sr.AgentModifiable())

	sr = &ServiceRequest{IsAgentInitiated: true, AgentApprovalStatus: &pending}
	assert.False(t, sr.AgentModifiable())

	sr = &ServiceRequest{IsAgentInitiated: true, AgentApprovalStatus: &approved}
	assert.True(t, sr.AgentModifiable())

	sr = &ServiceRequest{IsAgentInitiated: true}
	assert.False(t, sr.AgentModifiable())
}
