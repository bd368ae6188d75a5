package models

import (
	"github.com/go-playground/validator/v10"
)

type Status string

const (
	StatusDraft           Status = "Draft"
	StatusPendingApproval Status = "Pending Approval"
	StatusApproved        Status = "Approved"
	StatusRejected        Status = "Rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Locked reports whether a student may no longer edit an entry in this status.
func (s Status) Locked() bool {
	return s == StatusApproved || s == StatusPendingApproval
}

type LogbookEntry struct {
	ID                 string `json:"id"`
	StudentID          string `json:"studentId"`
	Date               string `json:"date"`
	Week               int    `json:"week"`
	Day                string `json:"day"`
	Tasks              string `json:"tasks"`
	SkillsLearned      string `json:"skillsLearned"`
	Status             Status `json:"status"`
	SupervisorFeedback string `json:"supervisorFeedback,omitempty"`
}

// EntryInput is what a student submits from the entry form. ID is empty for new entries.
type EntryInput struct {
	ID            string `json:"id,omitempty"`
	StudentID     string `json:"studentId" validate:"required"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Week          int    `json:"week" validate:"min=1"`
	Day           string `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Tasks         string `json:"tasks" validate:"required"`
	SkillsLearned string `json:"skillsLearned" validate:"required"`
}

func (e *EntryInput) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}

type ReviewInput struct {
	Status   Status  `json:"status" validate:"required,oneof=Approved Rejected"`
	Feedback *string `json:"feedback,omitempty"`
}

func (r *ReviewInput) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
