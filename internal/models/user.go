package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Role string

const (
	RoleStudent              Role = "student"
	RoleIndustrialSupervisor Role = "industrial-supervisor"
	RoleAcademicSupervisor   Role = "academic-supervisor"
	RoleAdmin                Role = "admin"
)

func (r Role) IsSupervisor() bool {
	return r == RoleIndustrialSupervisor || r == RoleAcademicSupervisor
}

// Contact is shared by every kind of user.
type Contact struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Avatar    string
}

func (c *Contact) Profile() *Contact { return c }

func (c *Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}

// User is one of *Student, *IndustrialSupervisor, *AcademicSupervisor or *Admin.
type User interface {
	Role() Role
	Profile() *Contact
	isUser()
}

// Supervisor is implemented by both supervisor kinds.
type Supervisor interface {
	User
	Supervising() *Supervision
}

type Supervision struct {
	SupervisorCode     string
	AssignedStudentIDs []string
}

func (s *Supervision) Supervising() *Supervision { return s }

// Assigned reports whether studentID is on the supervisor's list.
func (s *Supervision) Assigned(studentID string) bool {
	for _, id := range s.AssignedStudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

type Student struct {
	Contact
	StudentID              string
	Gender                 string
	School                 string
	Faculty                string
	Department             string
	Level                  string
	IndustrialSupervisorID string
	AcademicSupervisorID   string
}

type IndustrialSupervisor struct {
	Contact
	Supervision
	Company     string
	CompanyRole string
}

type AcademicSupervisor struct {
	Contact
	Supervision
}

type Admin struct {
	Contact
}

func (*Student) Role() Role              { return RoleStudent }
func (*IndustrialSupervisor) Role() Role { return RoleIndustrialSupervisor }
func (*AcademicSupervisor) Role() Role   { return RoleAcademicSupervisor }
func (*Admin) Role() Role                { return RoleAdmin }

func (*Student) isUser()              {}
func (*IndustrialSupervisor) isUser() {}
func (*AcademicSupervisor) isUser()   {}
func (*Admin) isUser()                {}

// UserRecord is the flat shape users are persisted and exchanged in.
type UserRecord struct {
	ID                     string   `json:"id"`
	FirstName              string   `json:"firstName" validate:"required"`
	LastName               string   `json:"lastName" validate:"required"`
	Email                  string   `json:"email" validate:"required,email"`
	Role                   Role     `json:"role" validate:"required,oneof=student industrial-supervisor academic-supervisor admin"`
	Avatar                 string   `json:"avatar,omitempty"`
	StudentID              string   `json:"studentId,omitempty"`
	Gender                 string   `json:"gender,omitempty" validate:"omitempty,oneof=Male Female Other"`
	School                 string   `json:"school,omitempty"`
	Faculty                string   `json:"faculty,omitempty"`
	Department             string   `json:"department,omitempty"`
	Level                  string   `json:"level,omitempty"`
	Company                string   `json:"company,omitempty"`
	CompanyRole            string   `json:"companyRole,omitempty"`
	SupervisorCode         string   `json:"supervisorCode,omitempty"`
	IndustrialSupervisorID string   `json:"industrialSupervisorId,omitempty"`
	AcademicSupervisorID   string   `json:"academicSupervisorId,omitempty"`
	AssignedStudentIDs     []string `json:"assignedStudentIds,omitempty"`
}

func (r *UserRecord) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ToUser builds the role-specific user, dropping fields that do not apply to the role.
func (r UserRecord) ToUser() (User, error) {
	contact := Contact{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Avatar:    r.Avatar,
	}
	supervision := Supervision{
		SupervisorCode:     r.SupervisorCode,
		AssignedStudentIDs: r.AssignedStudentIDs,
	}

	switch r.Role {
	case RoleStudent:
		return &Student{
			Contact:                contact,
			StudentID:              r.StudentID,
			Gender:                 r.Gender,
			School:                 r.School,
			Faculty:                r.Faculty,
			Department:             r.Department,
			Level:                  r.Level,
			IndustrialSupervisorID: r.IndustrialSupervisorID,
			AcademicSupervisorID:   r.AcademicSupervisorID,
		}, nil
	case RoleIndustrialSupervisor:
		return &IndustrialSupervisor{
			Contact:     contact,
			Supervision: supervision,
			Company:     r.Company,
			CompanyRole: r.CompanyRole,
		}, nil
	case RoleAcademicSupervisor:
		return &AcademicSupervisor{Contact: contact, Supervision: supervision}, nil
	case RoleAdmin:
		return &Admin{Contact: contact}, nil
	default:
		return nil, fmt.Errorf("unknown role %q for user %s", r.Role, r.ID)
	}
}

func RecordOf(u User) UserRecord {
	c := u.Profile()
	rec := UserRecord{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Avatar:    c.Avatar,
		Role:      u.Role(),
	}

	switch v := u.(type) {
	case *Student:
		rec.StudentID = v.StudentID
		rec.Gender = v.Gender
		rec.School = v.School
		rec.Faculty = v.Faculty
		rec.Department = v.Department
		rec.Level = v.Level
		rec.IndustrialSupervisorID = v.IndustrialSupervisorID
		rec.AcademicSupervisorID = v.AcademicSupervisorID
	case *IndustrialSupervisor:
		rec.Company = v.Company
		rec.CompanyRole = v.CompanyRole
		rec.SupervisorCode = v.SupervisorCode
		rec.AssignedStudentIDs = v.AssignedStudentIDs
	case *AcademicSupervisor:
		rec.SupervisorCode = v.SupervisorCode
		rec.AssignedStudentIDs = v.AssignedStudentIDs
	}

	return rec
}
