package services

import (
	"context"
	"errors"
	"testing"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServiceRequestService(repo *fakeRepository, publisher events.Publisher) ServiceRequestService {
	logger := testLogger()
	return NewServiceRequestService(repo, utils.NewValidator(), NewAuditService(repo, logger), publisher, logger)
}

func seedServiceRequest(repo *fakeRepository, studentID string, status models.ServiceRequestStatus, mutate func(*models.ServiceRequest)) *models.ServiceRequest {
	sr := &models.ServiceRequest{
		StudentID:   studentID,
		ServiceType: models.ServiceVisaGuidance,
		Status:      status,
		Progress:    models.ServiceRequestProgressFloor(status),
		Priority:    models.PriorityMedium,
	}
	if mutate != nil {
		mutate(sr)
	}
	_ = (&fakeSRRepo{repo}).Create(context.Background(), sr)
	return sr
}

func TestServiceRequestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("student opens a case", func(t *testing.T) {
		repo := newFakeRepository()
		publisher := events.NewMockPublisher()
		svc := newServiceRequestService(repo, publisher)
		student := seedStudent(repo)

		sr, err := svc.Create(ctx, student, CreateServiceRequestRequest{
			ServiceType: models.ServiceProfileAssessment,
		})
		require.NoError(t, err)
		assert.Equal(t, models.SRPendingAssignment, sr.Status)
		assert.Equal(t, 5, sr.Progress)
		assert.Equal(t, models.PriorityMedium, sr.Priority)
		assert.False(t, sr.IsAgentInitiated)

		// The requested service lands in the student's selection.
		stored, err := repo.Students().GetByID(ctx, student.Student.ID)
		require.NoError(t, err)
		assert.Contains(t, stored.SelectedServices, models.ServiceProfileAssessment)

		created := publisher.EventsOfType(events.EventServiceRequestCreated)
		require.Len(t, created, 1)
	})

	t.Run("duplicate open request of same type rejected", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		student := seedStudent(repo)

		_, err := svc.Create(ctx, student, CreateServiceRequestRequest{ServiceType: models.ServiceVisaGuidance})
		require.NoError(t, err)

		_, err = svc.Create(ctx, student, CreateServiceRequestRequest{ServiceType: models.ServiceVisaGuidance})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateOpenRequest)
		assert.True(t, IsConflict(err))
	})

	t.Run("closed request does not block a new one", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		student := seedStudent(repo)
		seedServiceRequest(repo, student.Student.ID, models.SRCompleted, nil)

		_, err := svc.Create(ctx, student, CreateServiceRequestRequest{ServiceType: models.ServiceVisaGuidance})
		assert.NoError(t, err)
	})

	t.Run("agent referral starts frozen pending approval", func(t *testing.T) {
		repo := newFakeRepository()
		publisher := events.NewMockPublisher()
		svc := newServiceRequestService(repo, publisher)
		agent := seedUser(repo, models.RoleAgent)
		student := seedStudent(repo)
		agentID := agent.ID()
		student.Student.AssignedAgent = &agentID
		require.NoError(t, repo.Students().Update(ctx, student.Student))

		sr, err := svc.Create(ctx, agent, CreateServiceRequestRequest{
			ServiceType: models.ServiceUniversityShortlisting,
			StudentID:   student.Student.ID,
		})
		require.NoError(t, err)
		assert.True(t, sr.IsAgentInitiated)
		require.NotNil(t, sr.AgentApprovalStatus)
		assert.Equal(t, models.ApprovalPending, *sr.AgentApprovalStatus)
		require.NotNil(t, sr.AssignedAgent)
		assert.Equal(t, agentID, *sr.AssignedAgent)
	})

	t.Run("agent cannot refer an unlinked student", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		agent := seedUser(repo, models.RoleAgent)
		student := seedStudent(repo)

		_, err := svc.Create(ctx, agent, CreateServiceRequestRequest{
			ServiceType: models.ServiceVisaGuidance,
			StudentID:   student.Student.ID,
		})
		var pe *PermissionError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("counselor cannot create", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		counselor := seedUser(repo, models.RoleCounselor)

		_, err := svc.Create(ctx, counselor, CreateServiceRequestRequest{ServiceType: models.ServiceVisaGuidance})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestServiceRequestAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("admin assigns a counselor", func(t *testing.T) {
		repo := newFakeRepository()
		publisher := events.NewMockPublisher()
		svc := newServiceRequestService(repo, publisher)
		admin := seedUser(repo, models.RoleSuperAdmin)
		counselor := seedUser(repo, models.RoleCounselor)
		student := seedStudent(repo)
		sr := seedServiceRequest(repo, student.Student.ID, models.SRPendingAssignment, nil)

		counselorID := counselor.ID()
		updated, err := svc.Assign(ctx, admin, sr.ID, AssignRequest{CounselorID: &counselorID})
		require.NoError(t, err)
		assert.Equal(t, models.SRAssigned, updated.Status)
		assert.Equal(t, 15, updated.Progress)
		require.NotNil(t, updated.AssignedCounselor)
		assert.Equal(t, counselorID, *updated.AssignedCounselor)
		require.NotNil(t, updated.AssignedAt)

		assigned := publisher.EventsOfType(events.EventServiceRequestAssigned)
		require.Len(t, assigned, 1)
	})

	t.Run("reassignment keeps status", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		admin := seedUser(repo, models.RoleSuperAdmin)
		first := seedUser(repo, models.RoleCounselor)
		second := seedUser(repo, models.RoleCounselor)
		student := seedStudent(repo)
		firstID := first.ID()
		sr := seedServiceRequest(repo, student.Student.ID, models.SRAssigned, func(sr *models.ServiceRequest) {
			sr.AssignedCounselor = &firstID
		})

		secondID := second.ID()
		updated, err := svc.Assign(ctx, admin, sr.ID, AssignRequest{CounselorID: &secondID})
		require.NoError(t, err)
		assert.Equal(t, models.SRAssigned, updated.Status)
		assert.Equal(t, secondID, *updated.AssignedCounselor)
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		counselor := seedUser(repo, models.RoleCounselor)
		student := seedStudent(repo)
		sr := seedServiceRequest(repo, student.Student.ID, models.SRPendingAssignment, nil)

		id := counselor.ID()
		_, err := svc.Assign(ctx, counselor, sr.ID, AssignRequest{CounselorID: &id})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("assignee must hold the matching role", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		admin := seedUser(repo, models.RoleSuperAdmin)
		agent := seedUser(repo, models.RoleAgent)
		student := seedStudent(repo)
		sr := seedServiceRequest(repo, student.Student.ID, models.SRPendingAssignment, nil)

		agentID := agent.ID()
		_, err := svc.Assign(ctx, admin, sr.ID, AssignRequest{CounselorID: &agentID})
		var ve ValidationErrors
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("in-progress case cannot be assigned", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		admin := seedUser(repo, models.RoleSuperAdmin)
		counselor := seedUser(repo, models.RoleCounselor)
		student := seedStudent(repo)
		sr := seedServiceRequest(repo, student.Student.ID, models.SRInProgress, nil)

		id := counselor.ID()
		_, err := svc.Assign(ctx, admin, sr.ID, AssignRequest{CounselorID: &id})
		var te *TransitionError
		assert.ErrorAs(t, err, &te)
	})
}

func TestServiceRequestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("assigned counselor moves the case", func(t *testing.T) {
		repo := newFakeRepository()
		publisher := events.NewMockPublisher()
		svc := newServiceRequestService(repo, publisher)
		counselor := seedUser(repo, models.RoleCounselor)
		student := seedStudent(repo)
		counselorID := counselor.ID()
		sr := seedServiceRequest(repo, student.Student.ID, models.SRAssigned, func(sr *models.ServiceRequest) {
			sr.AssignedCounselor = &counselorID
		})

		updated, err := svc.UpdateStatus(ctx, counselor, sr.ID, models.SRInProgress, "kickoff call done")
		require.NoError(t, err)
		assert.Equal(t, models.SRInProgress, updated.Status)
		assert.Equal(t, 50, updated.Progress)

		// History records the status held before the transition.
		require.NotEmpty(t, updated.StatusHistory)
		last := updated.StatusHistory[len(updated.StatusHistory)-1]
		assert.Equal(t, string(models.SRAssigned), last.Status)
		assert.Equal(t, "kickoff call done", last.Note)

		changed := publisher.EventsOfType(events.EventServiceRequestStatusChanged)
		require.Len(t, changed, 1)
	})

	t.Run("invalid transition carries allowed set", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		counselor := seedUser(repo, models.RoleCounselor)
		student := seedStudent(repo)
		counselorID := counselor.ID()
		sr := seedServiceRequest(repo, student.Student.ID, models.SRAssigned, func(sr *models.ServiceRequest) {
			sr.AssignedCounselor = &counselorID
		})

		_, err := svc.UpdateStatus(ctx, counselor, sr.ID, models.SRCompleted, "")
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, string(models.SRAssigned), te.Current)
		assert.Contains(t, te.Allowed, string(models.SRInProgress))
	})

	t.Run("students cannot change status", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		student := seedStudent(repo)
		sr := seedServiceRequest(repo, student.Student.ID, models.SRAssigned, nil)

		_, err := svc.UpdateStatus(ctx, student, sr.ID, models.SRInProgress, "")
		var pe *PermissionError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("owning agent frozen until referral approved", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		agent := seedUser(repo, models.RoleAgent)
		student := seedStudent(repo)
		agentID := agent.ID()
		pending := models.ApprovalPending
		sr := seedServiceRequest(repo, student.Student.ID, models.SRAssigned, func(sr *models.ServiceRequest) {
			sr.AssignedAgent = &agentID
			sr.IsAgentInitiated = true
			sr.AgentApprovalStatus = &pending
		})

		_, err := svc.UpdateStatus(ctx, agent, sr.ID, models.SRInProgress, "")
		var pe *PermissionError
		require.ErrorAs(t, err, &pe)
		require.NotNil(t, pe.ApprovalStatus)
		assert.Equal(t, models.ApprovalPending, *pe.ApprovalStatus)
	})

	t.Run("missing case", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		admin := seedUser(repo, models.RoleSuperAdmin)

		_, err := svc.UpdateStatus(ctx, admin, "nope", models.SRInProgress, "")
		assert.ErrorIs(t, err, ErrServiceRequestNotFound)
	})
}

func TestServiceRequestUpdateProgress(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (ServiceRequestService, *auth.Actor, *models.ServiceRequest, *fakeRepository) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		counselor := seedUser(repo, models.RoleCounselor)
		student := seedStudent(repo)
		counselorID := counselor.ID()
		sr := seedServiceRequest(repo, student.Student.ID, models.SRInProgress, func(sr *models.ServiceRequest) {
			sr.AssignedCounselor = &counselorID
		})
		return svc, counselor, sr, repo
	}

	t.Run("progress only moves up", func(t *testing.T) {
		svc, counselor, sr, _ := setup(t)

		updated, err := svc.UpdateProgress(ctx, counselor, sr.ID, 75)
		require.NoError(t, err)
		assert.Equal(t, 75, updated.Progress)

		// A lower value is a silent no-op.
		updated, err = svc.UpdateProgress(ctx, counselor, sr.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, 75, updated.Progress)
	})

	t.Run("hitting 100 completes the case", func(t *testing.T) {
		svc, counselor, sr, repo := setup(t)

		updated, err := svc.UpdateProgress(ctx, counselor, sr.ID, 100)
		require.NoError(t, err)
		assert.Equal(t, models.SRCompleted, updated.Status)
		assert.Equal(t, 100, updated.Progress)
		assert.NotNil(t, updated.CompletedAt)

		stored, err := repo.ServiceRequests().GetByID(ctx, sr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SRCompleted, stored.Status)
	})

	t.Run("out-of-range values clamp", func(t *testing.T) {
		svc, counselor, sr, _ := setup(t)

		updated, err := svc.UpdateProgress(ctx, counselor, sr.ID, -10)
		require.NoError(t, err)
		assert.Equal(t, 50, updated.Progress)

		updated, err = svc.UpdateProgress(ctx, counselor, sr.ID, 150)
		require.NoError(t, err)
		assert.Equal(t, models.SRCompleted, updated.Status)
	})

	t.Run("terminal case rejects progress", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		admin := seedUser(repo, models.RoleSuperAdmin)
		student := seedStudent(repo)
		sr := seedServiceRequest(repo, student.Student.ID, models.SRCancelled, nil)

		_, err := svc.UpdateProgress(ctx, admin, sr.ID, 80)
		var te *TransitionError
		assert.ErrorAs(t, err, &te)
	})
}

func TestReferralApproval(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (ServiceRequestService, *events.MockPublisher, *auth.Actor, *models.ServiceRequest, *fakeRepository) {
		repo := newFakeRepository()
		publisher := events.NewMockPublisher()
		svc := newServiceRequestService(repo, publisher)
		admin := seedUser(repo, models.RoleSuperAdmin)
		agent := seedUser(repo, models.RoleAgent)
		student := seedStudent(repo)
		agentID := agent.ID()
		pending := models.ApprovalPending
		sr := seedServiceRequest(repo, student.Student.ID, models.SRPendingAssignment, func(sr *models.ServiceRequest) {
			sr.IsAgentInitiated = true
			sr.AgentApprovalStatus = &pending
			sr.AssignedAgent = &agentID
		})
		return svc, publisher, admin, sr, repo
	}

	t.Run("approve unfreezes the referral", func(t *testing.T) {
		svc, publisher, admin, sr, _ := setup(t)

		updated, err := svc.ApproveReferral(ctx, admin, sr.ID, "looks legitimate")
		require.NoError(t, err)
		require.NotNil(t, updated.AgentApprovalStatus)
		assert.Equal(t, models.ApprovalApproved, *updated.AgentApprovalStatus)
		assert.NotNil(t, updated.ApprovedAt)
		assert.True(t, updated.AgentModifiable())

		decisions := publisher.EventsOfType(events.EventServiceRequestApproval)
		require.Len(t, decisions, 1)
	})

	t.Run("reject records the reason", func(t *testing.T) {
		svc, _, admin, sr, _ := setup(t)

		updated, err := svc.RejectReferral(ctx, admin, sr.ID, "student already served elsewhere")
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalRejected, *updated.AgentApprovalStatus)
		assert.NotNil(t, updated.RejectedAt)
		require.NotNil(t, updated.ApprovalNotes)
		assert.Equal(t, "student already served elsewhere", *updated.ApprovalNotes)
	})

	t.Run("double decision rejected", func(t *testing.T) {
		svc, _, admin, sr, _ := setup(t)

		_, err := svc.ApproveReferral(ctx, admin, sr.ID, "")
		require.NoError(t, err)
		_, err = svc.ApproveReferral(ctx, admin, sr.ID, "")
		assert.ErrorIs(t, err, ErrApprovalNotPending)
	})

	t.Run("organic request has nothing to approve", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newServiceRequestService(repo, events.NewMockPublisher())
		admin := seedUser(repo, models.RoleSuperAdmin)
		student := seedStudent(repo)
		sr := seedServiceRequest(repo, student.Student.ID, models.SRPendingAssignment, nil)

		_, err := svc.ApproveReferral(ctx, admin, sr.ID, "")
		assert.ErrorIs(t, err, ErrApprovalNotPending)
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		svc, _, _, sr, repo := setup(t)
		agent := seedUser(repo, models.RoleAgent)

		_, err := svc.ApproveReferral(ctx, agent, sr.ID, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestServiceRequestListScoping(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc := newServiceRequestService(repo, events.NewMockPublisher())

	admin := seedUser(repo, models.RoleSuperAdmin)
	counselor := seedUser(repo, models.RoleCounselor)
	alice := seedStudent(repo)
	bob := seedStudent(repo)

	counselorID := counselor.ID()
	seedServiceRequest(repo, alice.Student.ID, models.SRAssigned, func(sr *models.ServiceRequest) {
		sr.AssignedCounselor = &counselorID
	})
	seedServiceRequest(repo, bob.Student.ID, models.SRPendingAssignment, nil)

	t.Run("student sees only own cases", func(t *testing.T) {
		items, total, err := svc.List(ctx, alice, repositories.ServiceRequestFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, alice.Student.ID, items[0].StudentID)
	})

	t.Run("counselor sees only assigned cases", func(t *testing.T) {
		items, _, err := svc.List(ctx, counselor, repositories.ServiceRequestFilters{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, counselorID, *items[0].AssignedCounselor)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		_, total, err := svc.List(ctx, admin, repositories.ServiceRequestFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
	})
}

func TestServiceRequestNotes(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc := newServiceRequestService(repo, events.NewMockPublisher())
	counselor := seedUser(repo, models.RoleCounselor)
	student := seedStudent(repo)
	counselorID := counselor.ID()
	sr := seedServiceRequest(repo, student.Student.ID, models.SRInProgress, func(sr *models.ServiceRequest) {
		sr.AssignedCounselor = &counselorID
	})

	updated, err := svc.AddNote(ctx, counselor, sr.ID, "called the embassy", true)
	require.NoError(t, err)
	require.Len(t, updated.Notes, 1)
	assert.True(t, updated.Notes[0].IsInternal)
	assert.Equal(t, counselorID, updated.Notes[0].AddedBy)

	_, err = svc.AddNote(ctx, counselor, sr.ID, "", false)
	var ve ValidationErrors
	assert.True(t, errors.As(err, &ve))
}
