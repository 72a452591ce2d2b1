package auth

import (
	"github.com/EduBridge-2025/advisory-service/internal/models"
)

// Actor is the resolved caller: the user row plus the student profile when
// the role is student.
type Actor struct {
	User    *models.User
	Student *models.Student
}

func (a *Actor) ID() string {
	return a.User.ID
}

func (a *Actor) Role() models.UserRole {
	return a.User.Role
}

func (a *Actor) IsSuperAdmin() bool {
	return a.User.Role == models.RoleSuperAdmin
}

// Decision is the outcome of a per-entity predicate. Reason is only set on
// denial and is safe to return to the caller.
type Decision struct {
	Allowed bool
	Reason  string
	// ApprovalStatus is attached when an agent-initiated case blocks the
	// owning agent so the client can surface the pending state.
	ApprovalStatus *models.AgentApprovalStatus
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CanReadServiceRequest gates single-get and list membership. Owning agents
// may always read their cases, even while referral approval is pending.
func CanReadServiceRequest(actor *Actor, sr *models.ServiceRequest) Decision {
	switch actor.Role() {
	case models.RoleSuperAdmin:
		return allow()
	case models.RoleStudent:
		if actor.Student != nil && sr.StudentID == actor.Student.ID {
			return allow()
		}
	case models.RoleCounselor:
		if sr.AssignedCounselor != nil && *sr.AssignedCounselor == actor.ID() {
			return allow()
		}
	case models.RoleAgent:
		if sr.AssignedAgent != nil && *sr.AssignedAgent == actor.ID() {
			return allow()
		}
	}
	return deny("service request is outside your scope")
}

// CanModifyServiceRequest gates every modifying operation. This predicate is
// the single home of the agent-approval rule: an agent-initiated case is
// frozen for its agent until a super admin approves the referral.
func CanModifyServiceRequest(actor *Actor, sr *models.ServiceRequest) Decision {
	read := CanReadServiceRequest(actor, sr)
	if !read.Allowed {
		return read
	}

	if actor.Role() == models.RoleStudent {
		return deny("students cannot modify service requests")
	}

	if actor.Role() == models.RoleAgent && !sr.AgentModifiable() {
		d := deny("referral awaiting super admin approval")
		d.ApprovalStatus = sr.AgentApprovalStatus
		return d
	}

	return allow()
}

// CanReadTask scopes a task by its own assignment fields.
func CanReadTask(actor *Actor, task *models.Task) Decision {
	switch actor.Role() {
	case models.RoleSuperAdmin:
		return allow()
	case models.RoleStudent:
		if task.AssignedTo == actor.ID() {
			return allow()
		}
	case models.RoleCounselor, models.RoleAgent:
		if task.AssignedBy == actor.ID() {
			return allow()
		}
	}
	return deny("task is outside your scope")
}

// CanReadApplication gates admissions reads.
func CanReadApplication(actor *Actor, app *models.Application) Decision {
	switch actor.Role() {
	case models.RoleSuperAdmin:
		return allow()
	case models.RoleStudent:
		if actor.Student != nil && app.StudentID == actor.Student.ID {
			return allow()
		}
	case models.RoleAgent:
		if app.AgentID == actor.ID() {
			return allow()
		}
	}
	return deny("application is outside your scope")
}

// CanTransitionApplication gates admissions status changes: agents move their
// own applications, super admins move any. Students only act through
// accept-offer, which the application service checks separately.
func CanTransitionApplication(actor *Actor, app *models.Application) Decision {
	switch actor.Role() {
	case models.RoleSuperAdmin:
		return allow()
	case models.RoleAgent:
		if app.AgentID == actor.ID() {
			return allow()
		}
	}
	return deny("application is outside your scope")
}

// CheckChatAccess returns true iff the user participates in the case
// conversation: the owning student, the assigned counselor, the assigned
// agent, or a super admin.
func CheckChatAccess(actor *Actor, sr *models.ServiceRequest) bool {
	switch actor.Role() {
	case models.RoleSuperAdmin:
		return true
	case models.RoleStudent:
		return actor.Student != nil && sr.StudentID == actor.Student.ID
	case models.RoleCounselor:
		return sr.AssignedCounselor != nil && *sr.AssignedCounselor == actor.ID()
	case models.RoleAgent:
		return sr.AssignedAgent != nil && *sr.AssignedAgent == actor.ID()
	}
	return false
}

// ChatDisabled reports whether the case conversation is switched off; chat
// opens once an advisor has been assigned.
func ChatDisabled(sr *models.ServiceRequest) bool {
	return sr.Status == models.SRPendingAssignment
}
