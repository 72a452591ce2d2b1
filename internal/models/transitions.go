package models

// The three lifecycle machines are encoded as data so every modifier funnels
// through the same lookup and tests can enumerate the full (from, to) space.

var serviceRequestTransitions = map[ServiceRequestStatus][]ServiceRequestStatus{
	SRPendingAssignment: {SRAssigned, SRCancelled},
	SRAssigned:          {SRInProgress, SRWaitingStudent, SROnHold, SRCancelled},
	SRInProgress:        {SRCompleted, SRWaitingStudent, SROnHold, SRCancelled},
	SRWaitingStudent:    {SRInProgress, SRCancelled},
	SROnHold:            {SRInProgress, SRCancelled},
	SRCompleted:         {},
	SRCancelled:         {},
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:          {TaskInProgress, TaskCompleted},
	TaskInProgress:       {TaskSubmitted, TaskCompleted},
	TaskSubmitted:        {TaskUnderReview, TaskRevisionRequired, TaskCompleted},
	TaskUnderReview:      {TaskRevisionRequired, TaskCompleted},
	TaskRevisionRequired: {TaskInProgress, TaskSubmitted},
	TaskCompleted:        {},
}

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	AppAssigned:       {AppDocsPending},
	AppDocsPending:    {AppDocsVerified},
	AppDocsVerified:   {AppSubmitted},
	AppSubmitted:      {AppUnderReview},
	AppUnderReview:    {AppOfferReceived, AppRejected},
	AppOfferReceived:  {AppAccepted},
	AppAccepted:       {AppVisaProcessing},
	AppVisaProcessing: {AppCompleted},
	AppCompleted:      {},
	AppRejected:       {},
}

// Minimum progress implied by each service-request status. Progress never
// moves backwards except on cancellation.
var serviceRequestProgressFloor = map[ServiceRequestStatus]int{
	SRPendingAssignment: 5,
	SRAssigned:          15,
	SRInProgress:        50,
	SRWaitingStudent:    60,
	SRCompleted:         100,
}

func ServiceRequestNextStatuses(from ServiceRequestStatus) []ServiceRequestStatus {
	return append([]ServiceRequestStatus(nil), serviceRequestTransitions[from]...)
}

func ServiceRequestCanTransition(from, to ServiceRequestStatus) bool {
	for _, s := range serviceRequestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ServiceRequestProgressFloor(status ServiceRequestStatus) int {
	return serviceRequestProgressFloor[status]
}

func TaskNextStatuses(from TaskStatus) []TaskStatus {
	return append([]TaskStatus(nil), taskTransitions[from]...)
}

func TaskCanTransition(from, to TaskStatus) bool {
	for _, s := range taskTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ApplicationNextStatuses(from ApplicationStatus) []ApplicationStatus {
	return append([]ApplicationStatus(nil), applicationTransitions[from]...)
}

func ApplicationCanTransition(from, to ApplicationStatus) bool {
	for _, s := range applicationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllServiceRequestStatuses is exported for exhaustive table tests and enum
// validation.
var AllServiceRequestStatuses = []ServiceRequestStatus{
	SRPendingAssignment, SRAssigned, SRInProgress, SRWaitingStudent,
	SROnHold, SRCompleted, SRCancelled,
}

var AllTaskStatuses = []TaskStatus{
	TaskPending, TaskInProgress, TaskSubmitted, TaskUnderReview,
	TaskRevisionRequired, TaskCompleted,
}

var AllApplicationStatuses = []ApplicationStatus{
	AppAssigned, AppDocsPending, AppDocsVerified, AppSubmitted, AppUnderReview,
	AppOfferReceived, AppRejected, AppAccepted, AppVisaProcessing, AppCompleted,
}

var AllServiceTypes = []ServiceType{
	ServiceProfileAssessment, ServiceUniversityShortlisting,
	ServiceApplicationAssistance, ServiceVisaGuidance,
	ServiceScholarshipSearch, ServiceLoanAssistance,
	ServiceAccommodationHelp, ServicePreDeparture,
}
