package models

import "github.com/go-playground/validator/v10"

// Evaluation is an academic supervisor's final grade for a student. There is one per
// student and it is stored under the student's id.
type Evaluation struct {
	ID                   string  `json:"id"`
	StudentID            string  `json:"studentId" validate:"required"`
	AcademicSupervisorID string  `json:"academicSupervisorId" validate:"required"`
	Grade                float64 `json:"grade" validate:"gte=0,lte=100"`
	Comments             string  `json:"comments"`
	Date                 string  `json:"date"`
}

func (e *Evaluation) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}

type LinkResult struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Supervisor *UserRecord `json:"supervisor,omitempty"`
}
