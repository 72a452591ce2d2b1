package services

import (
	"context"
	"sort"
	"sync"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory repositories.Repository used across the
// service tests. It applies the same optimistic-concurrency semantics as the
// postgres implementation.
type fakeRepository struct {
	mu sync.Mutex

	users           map[string]*models.User
	students        map[string]*models.Student
	serviceRequests map[string]*models.ServiceRequest
	tasks           map[string]*models.Task
	applications    map[string]*models.Application
	notifications   map[string]*models.Notification
	messages        map[string]*models.Message
	auditLogs       []*models.AuditLog
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:           make(map[string]*models.User),
		students:        make(map[string]*models.Student),
		serviceRequests: make(map[string]*models.ServiceRequest),
		tasks:           make(map[string]*models.Task),
		applications:    make(map[string]*models.Application),
		notifications:   make(map[string]*models.Notification),
		messages:        make(map[string]*models.Message),
	}
}

func (r *fakeRepository) Users() repositories.UserRepository                     { return &fakeUserRepo{r} }
func (r *fakeRepository) Students() repositories.StudentRepository               { return &fakeStudentRepo{r} }
func (r *fakeRepository) ServiceRequests() repositories.ServiceRequestRepository { return &fakeSRRepo{r} }
func (r *fakeRepository) Tasks() repositories.TaskRepository                     { return &fakeTaskRepo{r} }
func (r *fakeRepository) Applications() repositories.ApplicationRepository       { return &fakeAppRepo{r} }
func (r *fakeRepository) Notifications() repositories.NotificationRepository {
	return &fakeNotificationRepo{r}
}
func (r *fakeRepository) Messages() repositories.MessageRepository { return &fakeMessageRepo{r} }
func (r *fakeRepository) Audit() repositories.AuditRepository      { return &fakeAuditRepo{r} }

func (r *fakeRepository) WithTx(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

// ===== USERS =====

type fakeUserRepo struct{ r *fakeRepository }

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = models.NormalizeEmail(user.Email)
	copied := *user
	f.r.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	user, ok := f.r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	email = models.NormalizeEmail(email)
	for _, user := range f.r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *user
	f.r.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.User
	for _, user := range f.r.users {
		if filters.Role != nil && user.Role != *filters.Role {
			continue
		}
		if filters.IsActive != nil && user.IsActive != *filters.IsActive {
			continue
		}
		copied := *user
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) ListActive(ctx context.Context) ([]*models.User, error) {
	active := true
	users, _, err := f.List(ctx, repositories.UserFilters{IsActive: &active})
	return users, err
}

func (f *fakeUserRepo) ListActiveByRole(ctx context.Context, role models.UserRole) ([]*models.User, error) {
	active := true
	users, _, err := f.List(ctx, repositories.UserFilters{IsActive: &active, Role: &role})
	return users, err
}

func (f *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return err == nil, err
}

// ===== STUDENTS =====

type fakeStudentRepo struct{ r *fakeRepository }

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	copied := *student
	f.r.students[student.ID] = &copied
	return nil
}

func (f *fakeStudentRepo) GetByID(ctx context.Context, id string) (*models.Student, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	student, ok := f.r.students[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *student
	return &copied, nil
}

func (f *fakeStudentRepo) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, student := range f.r.students {
		if student.UserID == userID {
			copied := *student
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.students[student.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *student
	f.r.students[student.ID] = &copied
	return nil
}

// ===== SERVICE REQUESTS =====

type fakeSRRepo struct{ r *fakeRepository }

func (f *fakeSRRepo) Create(ctx context.Context, sr *models.ServiceRequest) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if sr.ID == "" {
		sr.ID = uuid.NewString()
	}
	copied := *sr
	f.r.serviceRequests[sr.ID] = &copied
	return nil
}

func (f *fakeSRRepo) GetByID(ctx context.Context, id string) (*models.ServiceRequest, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	sr, ok := f.r.serviceRequests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sr
	if student, ok := f.r.students[sr.StudentID]; ok {
		sc := *student
		copied.Student = &sc
	}
	return &copied, nil
}

func (f *fakeSRRepo) Update(ctx context.Context, sr *models.ServiceRequest) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.serviceRequests[sr.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *sr
	copied.Student = nil
	f.r.serviceRequests[sr.ID] = &copied
	return nil
}

func (f *fakeSRRepo) UpdateFromStatus(ctx context.Context, sr *models.ServiceRequest, expected models.ServiceRequestStatus) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	stored, ok := f.r.serviceRequests[sr.ID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if stored.Status != expected {
		return false, nil
	}
	copied := *sr
	copied.Student = nil
	f.r.serviceRequests[sr.ID] = &copied
	return true, nil
}

func (f *fakeSRRepo) List(ctx context.Context, filters repositories.ServiceRequestFilters) ([]*models.ServiceRequest, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.ServiceRequest
	for _, sr := range f.r.serviceRequests {
		if filters.StudentID != nil && sr.StudentID != *filters.StudentID {
			continue
		}
		if filters.AssignedAgent != nil && (sr.AssignedAgent == nil || *sr.AssignedAgent != *filters.AssignedAgent) {
			continue
		}
		if filters.AssignedCounselor != nil && (sr.AssignedCounselor == nil || *sr.AssignedCounselor != *filters.AssignedCounselor) {
			continue
		}
		if filters.Status != nil && sr.Status != *filters.Status {
			continue
		}
		if filters.ServiceType != nil && sr.ServiceType != *filters.ServiceType {
			continue
		}
		copied := *sr
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeSRRepo) HasOpenRequest(ctx context.Context, studentID string, serviceType models.ServiceType) (*models.ServiceRequest, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, sr := range f.r.serviceRequests {
		if sr.StudentID == studentID && sr.ServiceType == serviceType && !sr.IsTerminal() {
			copied := *sr
			return &copied, nil
		}
	}
	return nil, nil
}

// ===== TASKS =====

type fakeTaskRepo struct{ r *fakeRepository }

func (f *fakeTaskRepo) Create(ctx context.Context, task *models.Task) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	copied := *task
	f.r.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, id string) (*models.Task, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	task, ok := f.r.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskRepo) Update(ctx context.Context, task *models.Task) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.tasks[task.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *task
	f.r.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTaskRepo) UpdateFromStatus(ctx context.Context, task *models.Task, expected models.TaskStatus) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	stored, ok := f.r.tasks[task.ID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if stored.Status != expected {
		return false, nil
	}
	copied := *task
	f.r.tasks[task.ID] = &copied
	return true, nil
}

func (f *fakeTaskRepo) Delete(ctx context.Context, id string) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.tasks[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.r.tasks, id)
	return nil
}

func (f *fakeTaskRepo) List(ctx context.Context, filters repositories.TaskFilters) ([]*models.Task, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Task
	for _, task := range f.r.tasks {
		if filters.ServiceRequestID != nil && task.ServiceRequestID != *filters.ServiceRequestID {
			continue
		}
		if filters.AssignedTo != nil && task.AssignedTo != *filters.AssignedTo {
			continue
		}
		if filters.AssignedBy != nil && task.AssignedBy != *filters.AssignedBy {
			continue
		}
		if filters.Status != nil && task.Status != *filters.Status {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeTaskRepo) CountByServiceRequest(ctx context.Context, serviceRequestID string) (repositories.TaskCounts, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var counts repositories.TaskCounts
	for _, task := range f.r.tasks {
		if task.ServiceRequestID != serviceRequestID {
			continue
		}
		counts.Total++
		if task.Status == models.TaskCompleted {
			counts.Completed++
		}
	}
	return counts, nil
}

// ===== APPLICATIONS =====

type fakeAppRepo struct{ r *fakeRepository }

func (f *fakeAppRepo) Create(ctx context.Context, app *models.Application) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	copied := *app
	f.r.applications[app.ID] = &copied
	return nil
}

func (f *fakeAppRepo) GetByID(ctx context.Context, id string) (*models.Application, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	app, ok := f.r.applications[id]
	if !ok || app.IsDeleted {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *app
	return &copied, nil
}

func (f *fakeAppRepo) Update(ctx context.Context, app *models.Application) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.applications[app.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *app
	copied.Student = nil
	f.r.applications[app.ID] = &copied
	return nil
}

func (f *fakeAppRepo) UpdateFromStatus(ctx context.Context, app *models.Application, expected models.ApplicationStatus) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	stored, ok := f.r.applications[app.ID]
	if !ok || stored.IsDeleted {
		return false, gorm.ErrRecordNotFound
	}
	if stored.Status != expected {
		return false, nil
	}
	copied := *app
	copied.Student = nil
	f.r.applications[app.ID] = &copied
	return true, nil
}

func (f *fakeAppRepo) SoftDelete(ctx context.Context, id string) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	app, ok := f.r.applications[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	app.IsDeleted = true
	return nil
}

func (f *fakeAppRepo) List(ctx context.Context, filters repositories.ApplicationFilters) ([]*models.Application, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Application
	for _, app := range f.r.applications {
		if app.IsDeleted {
			continue
		}
		if filters.StudentID != nil && app.StudentID != *filters.StudentID {
			continue
		}
		if filters.AgentID != nil && app.AgentID != *filters.AgentID {
			continue
		}
		if filters.Status != nil && app.Status != *filters.Status {
			continue
		}
		copied := *app
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// ===== NOTIFICATIONS =====

type fakeNotificationRepo struct{ r *fakeRepository }

func (f *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	copied := *n
	f.r.notifications[n.ID] = &copied
	return nil
}

func (f *fakeNotificationRepo) CreateBatch(ctx context.Context, notifications []*models.Notification) error {
	for _, n := range notifications {
		if err := f.Create(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	n, ok := f.r.notifications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *n
	return &copied, nil
}

func (f *fakeNotificationRepo) Update(ctx context.Context, n *models.Notification) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.notifications[n.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *n
	f.r.notifications[n.ID] = &copied
	return nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, id string) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.notifications[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.r.notifications, id)
	return nil
}

func (f *fakeNotificationRepo) List(ctx context.Context, filters repositories.NotificationFilters) ([]*models.Notification, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Notification
	for _, n := range f.r.notifications {
		if filters.RecipientID != nil && n.RecipientID != *filters.RecipientID {
			continue
		}
		if filters.Type != nil && n.Type != *filters.Type {
			continue
		}
		if filters.IsRead != nil && n.IsRead != *filters.IsRead {
			continue
		}
		if filters.IsArchived != nil && n.IsArchived != *filters.IsArchived {
			continue
		}
		copied := *n
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var updated int64
	for _, n := range f.r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var count int64
	for _, n := range f.r.notifications {
		if n.RecipientID == recipientID && !n.IsRead && !n.IsArchived {
			count++
		}
	}
	return count, nil
}

// ===== MESSAGES =====

type fakeMessageRepo struct{ r *fakeRepository }

func (f *fakeMessageRepo) Create(ctx context.Context, m *models.Message) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	copied := *m
	f.r.messages[m.ID] = &copied
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	m, ok := f.r.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *m
	return &copied, nil
}

func (f *fakeMessageRepo) Update(ctx context.Context, m *models.Message) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.messages[m.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *m
	f.r.messages[m.ID] = &copied
	return nil
}

func (f *fakeMessageRepo) ListByServiceRequest(ctx context.Context, serviceRequestID string, filters repositories.MessageFilters) ([]*models.Message, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Message
	for _, m := range f.r.messages {
		if m.ServiceRequestID != serviceRequestID || m.IsDeleted {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

// ===== AUDIT =====

type fakeAuditRepo struct{ r *fakeRepository }

func (f *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	copied := *entry
	f.r.auditLogs = append(f.r.auditLogs, &copied)
	return nil
}

func (f *fakeAuditRepo) ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*models.AuditLog, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.AuditLog
	for _, entry := range f.r.auditLogs {
		if entry.EntityType == entityType && entry.EntityID == entityID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

// ===== REALTIME =====

// fakeEmitter records realtime emissions for assertions.
type fakeEmitter struct {
	mu        sync.Mutex
	emissions []fakeEmission
}

type fakeEmission struct {
	Room    string
	UserIDs []string
	Event   string
	Data    interface{}
}

func (f *fakeEmitter) Emit(room, event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emissions = append(f.emissions, fakeEmission{Room: room, Event: event, Data: data})
}

func (f *fakeEmitter) EmitToUsers(userIDs []string, event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emissions = append(f.emissions, fakeEmission{UserIDs: userIDs, Event: event, Data: data})
}

func (f *fakeEmitter) emissionsFor(event string) []fakeEmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeEmission
	for _, e := range f.emissions {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// ===== EMAIL =====

// fakeEmailSender records sent mail and can be flipped into failure mode.
type fakeEmailSender struct {
	mu   sync.Mutex
	sent []fakeEmail
	fail error
}

type fakeEmail struct {
	To      string
	Subject string
	Body    string
}

func (f *fakeEmailSender) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, fakeEmail{To: to, Subject: subject, Body: body})
	return nil
}

// ===== FIXTURES =====

// seedUser inserts a user and returns its actor.
func seedUser(repo *fakeRepository, role models.UserRole) *auth.Actor {
	user := &models.User{
		ID:       uuid.NewString(),
		FullName: "Test " + string(role),
		Email:    uuid.NewString() + "@example.com",
		Role:     role,
		IsActive: true,
	}
	_ = (&fakeUserRepo{repo}).Create(context.Background(), user)
	return &auth.Actor{User: user}
}

// seedStudent inserts a student user plus profile.
func seedStudent(repo *fakeRepository) *auth.Actor {
	actor := seedUser(repo, models.RoleStudent)
	student := &models.Student{
		ID:     uuid.NewString(),
		UserID: actor.ID(),
	}
	_ = (&fakeStudentRepo{repo}).Create(context.Background(), student)
	actor.Student = student
	return actor
}

func testLogger() utils.Logger {
	return utils.NewDevelopmentLogger()
}
