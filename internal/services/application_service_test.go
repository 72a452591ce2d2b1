package services

import (
	"context"
	"testing"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/cache"
	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApplicationService(repo *fakeRepository, publisher events.Publisher) ApplicationService {
	logger := testLogger()
	notifications := NewNotificationService(repo, &fakeEmailSender{}, &fakeEmitter{}, cache.NewUnreadCounter(cache.NoopCache{}), logger)
	audit := NewAuditService(repo, logger)
	return NewApplicationService(repo, notifications, utils.NewValidator(), audit, publisher, logger)
}

type applicationFixture struct {
	svc       ApplicationService
	publisher *events.MockPublisher
	repo      *fakeRepository
	agent     *auth.Actor
	student   *auth.Actor
}

func newApplicationFixture(t *testing.T) *applicationFixture {
	t.Helper()
	repo := newFakeRepository()
	publisher := events.NewMockPublisher()
	svc := newApplicationService(repo, publisher)
	agent := seedUser(repo, models.RoleAgent)
	student := seedStudent(repo)
	agentID := agent.ID()
	student.Student.AssignedAgent = &agentID
	require.NoError(t, repo.Students().Update(context.Background(), student.Student))
	return &applicationFixture{svc: svc, publisher: publisher, repo: repo, agent: agent, student: student}
}

func (f *applicationFixture) createApplication(t *testing.T) *models.Application {
	t.Helper()
	app, err := f.svc.CreateByAgent(context.Background(), f.agent, CreateApplicationRequest{
		StudentID:      f.student.Student.ID,
		UniversityName: "University of Toronto",
		ProgramName:    "MSc Computer Science",
		Country:        "Canada",
	})
	require.NoError(t, err)
	return app
}

// advance walks an application along the happy path up to target.
func (f *applicationFixture) advance(t *testing.T, appID string, target models.ApplicationStatus) *models.Application {
	t.Helper()
	path := []models.ApplicationStatus{
		models.AppDocsPending, models.AppDocsVerified, models.AppSubmitted,
		models.AppUnderReview, models.AppOfferReceived,
	}
	var app *models.Application
	var err error
	for _, status := range path {
		app, err = f.svc.UpdateStatus(context.Background(), f.agent, appID, status)
		require.NoError(t, err)
		if status == target {
			break
		}
	}
	return app
}

func TestApplicationCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("agent opens an application for an assigned student", func(t *testing.T) {
		f := newApplicationFixture(t)

		app := f.createApplication(t)
		assert.Equal(t, models.AppAssigned, app.Status)
		assert.Equal(t, f.agent.ID(), app.AgentID)
		assert.Equal(t, "agent", app.AssignedBy)
		require.Len(t, app.Timeline, 1)
		assert.Equal(t, "application created", app.Timeline[0].Event)

		created := f.publisher.EventsOfType(events.EventApplicationCreated)
		require.Len(t, created, 1)
	})

	t.Run("agent cannot act on an unassigned student", func(t *testing.T) {
		f := newApplicationFixture(t)
		stranger := seedStudent(f.repo)

		_, err := f.svc.CreateByAgent(ctx, f.agent, CreateApplicationRequest{
			StudentID:      stranger.Student.ID,
			UniversityName: "Anywhere",
			ProgramName:    "Anything",
		})
		var pe *PermissionError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("only agents use the agent path", func(t *testing.T) {
		f := newApplicationFixture(t)

		_, err := f.svc.CreateByAgent(ctx, f.student, CreateApplicationRequest{
			StudentID:      f.student.Student.ID,
			UniversityName: "Anywhere",
			ProgramName:    "Anything",
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin assigns an application to an agent", func(t *testing.T) {
		f := newApplicationFixture(t)
		admin := seedUser(f.repo, models.RoleSuperAdmin)

		app, err := f.svc.AssignByAdmin(ctx, admin, AssignApplicationRequest{
			CreateApplicationRequest: CreateApplicationRequest{
				StudentID:      f.student.Student.ID,
				UniversityName: "TU Munich",
				ProgramName:    "Informatics",
			},
			AgentID: f.agent.ID(),
		})
		require.NoError(t, err)
		assert.Equal(t, f.agent.ID(), app.AgentID)
		assert.Equal(t, "admin", app.AssignedBy)
	})

	t.Run("admin assignment requires an active agent", func(t *testing.T) {
		f := newApplicationFixture(t)
		admin := seedUser(f.repo, models.RoleSuperAdmin)
		counselor := seedUser(f.repo, models.RoleCounselor)

		_, err := f.svc.AssignByAdmin(ctx, admin, AssignApplicationRequest{
			CreateApplicationRequest: CreateApplicationRequest{
				StudentID:      f.student.Student.ID,
				UniversityName: "TU Munich",
				ProgramName:    "Informatics",
			},
			AgentID: counselor.ID(),
		})
		var ve ValidationErrors
		assert.ErrorAs(t, err, &ve)
	})
}

func TestApplicationStatusFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path runs to completion", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := f.createApplication(t)

		f.advance(t, app.ID, models.AppOfferReceived)
		accepted, err := f.svc.AcceptOffer(ctx, f.student, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AppAccepted, accepted.Status)

		_, err = f.svc.UpdateStatus(ctx, f.agent, app.ID, models.AppVisaProcessing)
		require.NoError(t, err)
		final, err := f.svc.UpdateStatus(ctx, f.agent, app.ID, models.AppCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.AppCompleted, final.Status)

		// Every hop landed in the timeline alongside the creation entry.
		assert.Len(t, final.Timeline, 9)
	})

	t.Run("stage skipping rejected", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := f.createApplication(t)

		_, err := f.svc.UpdateStatus(ctx, f.agent, app.ID, models.AppSubmitted)
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, string(models.AppAssigned), te.Current)
		assert.Equal(t, []string{string(models.AppDocsPending)}, te.Allowed)
	})

	t.Run("students cannot drive the pipeline", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := f.createApplication(t)

		_, err := f.svc.UpdateStatus(ctx, f.student, app.ID, models.AppDocsPending)
		var pe *PermissionError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("next statuses mirror the machine", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := f.createApplication(t)
		f.advance(t, app.ID, models.AppUnderReview)

		next, err := f.svc.NextStatuses(ctx, f.agent, app.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []models.ApplicationStatus{models.AppOfferReceived, models.AppRejected}, next)
	})
}

func TestAcceptOffer(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an offer on the table", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := f.createApplication(t)

		_, err := f.svc.AcceptOffer(ctx, f.student, app.ID)
		assert.ErrorIs(t, err, ErrOfferNotReceived)
	})

	t.Run("only the owning student accepts", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := f.createApplication(t)
		f.advance(t, app.ID, models.AppOfferReceived)

		other := seedStudent(f.repo)
		_, err := f.svc.AcceptOffer(ctx, other, app.ID)
		var pe *PermissionError
		require.ErrorAs(t, err, &pe)

		_, err = f.svc.AcceptOffer(ctx, f.agent, app.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestApplicationDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("student upload notifies the agent", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := f.createApplication(t)

		updated, err := f.svc.UploadDocument(ctx, f.student, app.ID, models.FileRef{
			URL:          "https://files.example.com/sop.pdf",
			OriginalName: "sop.pdf",
		})
		require.NoError(t, err)
		require.Len(t, updated.Documents, 1)
		assert.Equal(t, models.RoleStudent, updated.Documents[0].UploadedRole)
		assert.Equal(t, f.student.ID(), updated.Documents[0].UploadedBy)

		agentID := f.agent.ID()
		rows, _, err := f.repo.Notifications().List(ctx, repositories.NotificationFilters{RecipientID: &agentID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, models.NotificationAppDocUploaded, rows[0].Type)
		assert.Equal(t, models.ChannelDashboard, rows[0].Channel)
	})

	t.Run("agent upload notifies the student", func(t *testing.T) {
		f := newApplicationFixture(t)
		app := f.createApplication(t)

		_, err := f.svc.UploadDocument(ctx, f.agent, app.ID, models.FileRef{
			URL:          "https://files.example.com/offer.pdf",
			OriginalName: "offer.pdf",
		})
		require.NoError(t, err)

		studentUserID := f.student.ID()
		rows, _, err := f.repo.Notifications().List(ctx, repositories.NotificationFilters{RecipientID: &studentUserID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})
}

func TestApplicationChecklist(t *testing.T) {
	ctx := context.Background()
	f := newApplicationFixture(t)
	app := f.createApplication(t)

	t.Run("add and complete an item", func(t *testing.T) {
		updated, err := f.svc.AddChecklistItem(ctx, f.agent, app.ID, "Collect passport scan")
		require.NoError(t, err)
		require.Len(t, updated.Checklist, 1)
		assert.False(t, updated.Checklist[0].Completed)

		updated, err = f.svc.ToggleChecklistItem(ctx, f.agent, app.ID, 0, true)
		require.NoError(t, err)
		assert.True(t, updated.Checklist[0].Completed)
		require.NotNil(t, updated.Checklist[0].CompletedAt)
		require.NotNil(t, updated.Checklist[0].CompletedBy)
		assert.Equal(t, f.agent.ID(), *updated.Checklist[0].CompletedBy)
	})

	t.Run("unchecking clears completion", func(t *testing.T) {
		updated, err := f.svc.ToggleChecklistItem(ctx, f.agent, app.ID, 0, false)
		require.NoError(t, err)
		assert.False(t, updated.Checklist[0].Completed)
		assert.Nil(t, updated.Checklist[0].CompletedAt)
		assert.Nil(t, updated.Checklist[0].CompletedBy)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := f.svc.ToggleChecklistItem(ctx, f.agent, app.ID, 7, true)
		var ve ValidationErrors
		assert.ErrorAs(t, err, &ve)
	})
}

func TestApplicationSoftDelete(t *testing.T) {
	ctx := context.Background()
	f := newApplicationFixture(t)
	app := f.createApplication(t)

	t.Run("agents cannot delete", func(t *testing.T) {
		err := f.svc.SoftDelete(ctx, f.agent, app.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin delete hides the application", func(t *testing.T) {
		admin := seedUser(f.repo, models.RoleSuperAdmin)
		require.NoError(t, f.svc.SoftDelete(ctx, admin, app.ID))

		_, err := f.svc.Get(ctx, admin, app.ID)
		assert.ErrorIs(t, err, ErrApplicationNotFound)

		items, total, err := f.svc.List(ctx, admin, repositories.ApplicationFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
		assert.Empty(t, items)
	})
}

func TestApplicationListScoping(t *testing.T) {
	ctx := context.Background()
	f := newApplicationFixture(t)
	f.createApplication(t)

	otherAgent := seedUser(f.repo, models.RoleAgent)

	t.Run("agent sees own book only", func(t *testing.T) {
		items, _, err := f.svc.List(ctx, f.agent, repositories.ApplicationFilters{})
		require.NoError(t, err)
		assert.Len(t, items, 1)

		items, _, err = f.svc.List(ctx, otherAgent, repositories.ApplicationFilters{})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("student sees own applications", func(t *testing.T) {
		items, _, err := f.svc.List(ctx, f.student, repositories.ApplicationFilters{})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("counselors have no admissions view", func(t *testing.T) {
		counselor := seedUser(f.repo, models.RoleCounselor)
		_, _, err := f.svc.List(ctx, counselor, repositories.ApplicationFilters{})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
