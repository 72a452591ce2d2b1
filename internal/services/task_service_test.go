package services

import (
	"context"
	"testing"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskService(repo *fakeRepository, publisher events.Publisher) TaskService {
	logger := testLogger()
	validator := utils.NewValidator()
	audit := NewAuditService(repo, logger)
	srService := NewServiceRequestService(repo, validator, audit, publisher, logger)
	return NewTaskService(repo, srService, validator, audit, publisher, logger)
}

// taskFixture wires a counselor-owned in-progress case with its student.
type taskFixture struct {
	svc       TaskService
	publisher *events.MockPublisher
	repo      *fakeRepository
	counselor *auth.Actor
	student   *auth.Actor
	sr        *models.ServiceRequest
}

func newTaskFixture(t *testing.T, srStatus models.ServiceRequestStatus) *taskFixture {
	t.Helper()
	repo := newFakeRepository()
	publisher := events.NewMockPublisher()
	svc := newTaskService(repo, publisher)
	counselor := seedUser(repo, models.RoleCounselor)
	student := seedStudent(repo)
	counselorID := counselor.ID()
	sr := seedServiceRequest(repo, student.Student.ID, srStatus, func(sr *models.ServiceRequest) {
		sr.AssignedCounselor = &counselorID
	})
	return &taskFixture{svc: svc, publisher: publisher, repo: repo, counselor: counselor, student: student, sr: sr}
}

func (f *taskFixture) createTask(t *testing.T) *models.Task {
	t.Helper()
	task, err := f.svc.Create(context.Background(), f.counselor, CreateTaskRequest{
		ServiceRequestID: f.sr.ID,
		TaskType:         models.TaskDocumentUpload,
		Title:            "Upload transcripts",
		Description:      "Scan and upload your latest transcripts",
	})
	require.NoError(t, err)
	return task
}

func TestTaskCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("counselor assigns a task to the case student", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)

		task := f.createTask(t)
		assert.Equal(t, models.TaskPending, task.Status)
		assert.Equal(t, models.PriorityMedium, task.Priority)
		assert.Equal(t, f.student.ID(), task.AssignedTo)
		assert.Equal(t, f.counselor.ID(), task.AssignedBy)

		created := f.publisher.EventsOfType(events.EventTaskCreated)
		require.Len(t, created, 1)
	})

	t.Run("first task starts a freshly assigned case", func(t *testing.T) {
		f := newTaskFixture(t, models.SRAssigned)

		f.createTask(t)

		sr, err := f.repo.ServiceRequests().GetByID(ctx, f.sr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SRInProgress, sr.Status)
	})

	t.Run("students cannot create tasks", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)

		_, err := f.svc.Create(ctx, f.student, CreateTaskRequest{
			ServiceRequestID: f.sr.ID,
			TaskType:         models.TaskOther,
			Title:            "x",
			Description:      "y",
		})
		var pe *PermissionError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("no tasks on a closed case", func(t *testing.T) {
		f := newTaskFixture(t, models.SRCompleted)

		_, err := f.svc.Create(ctx, f.counselor, CreateTaskRequest{
			ServiceRequestID: f.sr.ID,
			TaskType:         models.TaskOther,
			Title:            "x",
			Description:      "y",
		})
		var te *TransitionError
		assert.ErrorAs(t, err, &te)
	})

	t.Run("agent with pending referral is frozen", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTaskService(repo, events.NewMockPublisher())
		agent := seedUser(repo, models.RoleAgent)
		student := seedStudent(repo)
		agentID := agent.ID()
		pending := models.ApprovalPending
		sr := seedServiceRequest(repo, student.Student.ID, models.SRAssigned, func(sr *models.ServiceRequest) {
			sr.AssignedAgent = &agentID
			sr.IsAgentInitiated = true
			sr.AgentApprovalStatus = &pending
		})

		_, err := svc.Create(ctx, agent, CreateTaskRequest{
			ServiceRequestID: sr.ID,
			TaskType:         models.TaskOther,
			Title:            "x",
			Description:      "y",
		})
		var pe *PermissionError
		require.ErrorAs(t, err, &pe)
		require.NotNil(t, pe.ApprovalStatus)
		assert.Equal(t, models.ApprovalPending, *pe.ApprovalStatus)
	})
}

func TestTaskSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("pending task passes through in-progress", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		submitted, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "done, see attached"})
		require.NoError(t, err)
		assert.Equal(t, models.TaskSubmitted, submitted.Status)
		require.NotNil(t, submitted.CurrentSubmission())
		assert.Equal(t, "done, see attached", submitted.CurrentSubmission().Text)

		// Two hops recorded: PENDING -> IN_PROGRESS -> SUBMITTED.
		require.Len(t, submitted.StatusHistory, 2)
		assert.Equal(t, string(models.TaskPending), submitted.StatusHistory[0].Status)
		assert.Equal(t, string(models.TaskInProgress), submitted.StatusHistory[1].Status)

		evts := f.publisher.EventsOfType(events.EventTaskSubmitted)
		require.Len(t, evts, 1)
	})

	t.Run("only the assignee submits", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		_, err := f.svc.Submit(ctx, f.counselor, task.ID, SubmitTaskRequest{Text: "nope"})
		assert.ErrorIs(t, err, ErrNotTaskAssignee)
	})

	t.Run("resubmission archives the superseded attempt", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		_, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "first attempt"})
		require.NoError(t, err)
		_, err = f.svc.Review(ctx, f.counselor, task.ID, ReviewTaskRequest{Text: "missing page 2", RequiresRevision: true})
		require.NoError(t, err)

		resubmitted, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "second attempt"})
		require.NoError(t, err)
		assert.Equal(t, models.TaskSubmitted, resubmitted.Status)
		assert.Equal(t, "second attempt", resubmitted.CurrentSubmission().Text)
		assert.Nil(t, resubmitted.CurrentFeedback())

		require.Len(t, resubmitted.RevisionHistory, 1)
		archived := resubmitted.RevisionHistory[0]
		assert.Equal(t, "first attempt", archived.Submission.Text)
		require.NotNil(t, archived.Feedback)
		assert.Equal(t, "missing page 2", archived.Feedback.Text)
	})

	t.Run("resubmission before review supersedes in place", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		_, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "early draft"})
		require.NoError(t, err)

		// No review happened yet; the second submit replaces the first
		// without the status leaving SUBMITTED.
		superseded, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "final draft"})
		require.NoError(t, err)
		assert.Equal(t, models.TaskSubmitted, superseded.Status)
		assert.Equal(t, "final draft", superseded.CurrentSubmission().Text)

		require.Len(t, superseded.RevisionHistory, 1)
		assert.Equal(t, "early draft", superseded.RevisionHistory[0].Submission.Text)
		assert.Nil(t, superseded.RevisionHistory[0].Feedback)
	})

	t.Run("completed task rejects submission", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)
		_, err := f.svc.UpdateStatus(ctx, f.counselor, task.ID, models.TaskCompleted)
		require.NoError(t, err)

		_, err = f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "too late"})
		var te *TransitionError
		assert.ErrorAs(t, err, &te)
	})
}

func TestTaskReview(t *testing.T) {
	ctx := context.Background()

	t.Run("approval completes the task and cascades", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "done"})
		require.NoError(t, err)

		rating := 5
		reviewed, err := f.svc.Review(ctx, f.counselor, task.ID, ReviewTaskRequest{Text: "great work", Rating: &rating})
		require.NoError(t, err)
		assert.Equal(t, models.TaskCompleted, reviewed.Status)
		assert.NotNil(t, reviewed.CompletedAt)
		require.NotNil(t, reviewed.CurrentFeedback())
		assert.Equal(t, "great work", reviewed.CurrentFeedback().Text)

		// The only task completed, so the case itself closes.
		sr, err := f.repo.ServiceRequests().GetByID(ctx, f.sr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SRCompleted, sr.Status)
		assert.Equal(t, 100, sr.Progress)
	})

	t.Run("partial completion moves progress only", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		first := f.createTask(t)
		second := f.createTask(t)

		_, err := f.svc.Submit(ctx, f.student, first.ID, SubmitTaskRequest{Text: "done"})
		require.NoError(t, err)
		_, err = f.svc.Review(ctx, f.counselor, first.ID, ReviewTaskRequest{Text: "ok"})
		require.NoError(t, err)

		sr, err := f.repo.ServiceRequests().GetByID(ctx, f.sr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SRInProgress, sr.Status)
		assert.Equal(t, 50, sr.Progress)

		_, err = f.svc.Submit(ctx, f.student, second.ID, SubmitTaskRequest{Text: "done too"})
		require.NoError(t, err)
		_, err = f.svc.Review(ctx, f.counselor, second.ID, ReviewTaskRequest{Text: "ok"})
		require.NoError(t, err)

		sr, err = f.repo.ServiceRequests().GetByID(ctx, f.sr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SRCompleted, sr.Status)
	})

	t.Run("revision request sends the task back", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "attempt"})
		require.NoError(t, err)

		reviewed, err := f.svc.Review(ctx, f.counselor, task.ID, ReviewTaskRequest{Text: "redo", RequiresRevision: true})
		require.NoError(t, err)
		assert.Equal(t, models.TaskRevisionRequired, reviewed.Status)

		sr, err := f.repo.ServiceRequests().GetByID(ctx, f.sr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SRInProgress, sr.Status)
	})

	t.Run("nothing to review", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		_, err := f.svc.Review(ctx, f.counselor, task.ID, ReviewTaskRequest{Text: "eager"})
		assert.ErrorIs(t, err, ErrNoSubmission)
	})

	t.Run("only the creator or an admin reviews", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "attempt"})
		require.NoError(t, err)

		other := seedUser(f.repo, models.RoleCounselor)
		_, err = f.svc.Review(ctx, other, task.ID, ReviewTaskRequest{Text: "drive-by"})
		var pe *PermissionError
		require.ErrorAs(t, err, &pe)

		admin := seedUser(f.repo, models.RoleSuperAdmin)
		_, err = f.svc.Review(ctx, admin, task.ID, ReviewTaskRequest{Text: "fine"})
		assert.NoError(t, err)
	})
}

func TestTaskUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("submitted task moves under review", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "done"})
		require.NoError(t, err)

		updated, err := f.svc.UpdateStatus(ctx, f.counselor, task.ID, models.TaskUnderReview)
		require.NoError(t, err)
		assert.Equal(t, models.TaskUnderReview, updated.Status)
	})

	t.Run("students cannot complete tasks", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		_, err := f.svc.UpdateStatus(ctx, f.student, task.ID, models.TaskCompleted)
		var pe *PermissionError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("submitted tasks complete through review only", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "done"})
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(ctx, f.counselor, task.ID, models.TaskCompleted)
		var pe *PermissionError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("submitted is not a direct target", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		_, err := f.svc.UpdateStatus(ctx, f.student, task.ID, models.TaskSubmitted)
		var pe *PermissionError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("advisor closes a task without submission", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		updated, err := f.svc.UpdateStatus(ctx, f.counselor, task.ID, models.TaskCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.TaskCompleted, updated.Status)
	})
}

func TestTaskDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("creator deletes a pending task", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)

		require.NoError(t, f.svc.Delete(ctx, f.counselor, task.ID))

		_, err := f.svc.Get(ctx, f.counselor, task.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("submitted work is not deletable", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.student, task.ID, SubmitTaskRequest{Text: "done"})
		require.NoError(t, err)

		err = f.svc.Delete(ctx, f.counselor, task.ID)
		assert.ErrorIs(t, err, ErrTaskNotDeletable)
	})

	t.Run("only the creator or an admin deletes", func(t *testing.T) {
		f := newTaskFixture(t, models.SRInProgress)
		task := f.createTask(t)
		other := seedUser(f.repo, models.RoleCounselor)

		err := f.svc.Delete(ctx, other, task.ID)
		var pe *PermissionError
		assert.ErrorAs(t, err, &pe)
	})
}
