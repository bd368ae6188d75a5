package supervision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/repository"
	"github.com/shrimpsizemoose/logbook/internal/store"
	"github.com/shrimpsizemoose/logbook/internal/store/memory"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Close() error { return nil }

func (m *MockStore) NewKey() string { return "k" }

func (m *MockStore) Get(ctx context.Context, path string) (store.Document, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(store.Document), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, path string, doc store.Document) error {
	return m.Called(path, doc).Error(0)
}

func (m *MockStore) Update(ctx context.Context, patches ...store.Patch) error {
	return m.Called(patches).Error(0)
}

func (m *MockStore) Remove(ctx context.Context, path string) error {
	return m.Called(path).Error(0)
}

func (m *MockStore) List(ctx context.Context, parent string) (map[string]store.Document, error) {
	args := m.Called(parent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]store.Document), args.Error(1)
}

func (m *MockStore) FindEqual(ctx context.Context, parent, field, value string) (map[string]store.Document, error) {
	args := m.Called(parent, field, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]store.Document), args.Error(1)
}

func doc(t *testing.T, rec models.UserRecord) store.Document {
	t.Helper()
	d, err := store.Encode(rec)
	require.NoError(t, err)
	return d
}

func newMocked(m *MockStore) *Service {
	return NewService(repository.NewUsers(m), repository.NewEvaluations(m))
}

func TestLinkFailuresDoNotMutate(t *testing.T) {
	ctx := context.Background()
	academic := models.UserRecord{ID: "a1", FirstName: "Ola", LastName: "Ade", Role: models.RoleAcademicSupervisor, SupervisorCode: "ACAD-OADE7"}
	industrial := models.UserRecord{ID: "i1", FirstName: "Jane", LastName: "Doe", Role: models.RoleIndustrialSupervisor, SupervisorCode: "IND-JDOE42"}

	testCases := []struct {
		name    string
		link    func(*Service) (*models.LinkResult, error)
		setup   func(t *testing.T, m *MockStore)
		message string
	}{
		{
			name: "industrial code not found",
			link: func(s *Service) (*models.LinkResult, error) { return s.LinkIndustrial(ctx, "s1", "IND-NOPE1") },
			setup: func(t *testing.T, m *MockStore) {
				m.On("FindEqual", "users", "supervisorCode", "IND-NOPE1").Return(map[string]store.Document{}, nil)
			},
			message: "Invalid Supervisor ID.",
		},
		{
			name: "academic code not found",
			link: func(s *Service) (*models.LinkResult, error) { return s.LinkAcademic(ctx, "s1", "ACAD-NOPE1") },
			setup: func(t *testing.T, m *MockStore) {
				m.On("FindEqual", "users", "supervisorCode", "ACAD-NOPE1").Return(map[string]store.Document{}, nil)
			},
			message: "Invalid Academic Supervisor ID.",
		},
		{
			name:    "blank code",
			link:    func(s *Service) (*models.LinkResult, error) { return s.LinkIndustrial(ctx, "s1", "   ") },
			setup:   func(t *testing.T, m *MockStore) {},
			message: "Invalid Supervisor ID.",
		},
		{
			name: "academic code in industrial flow",
			link: func(s *Service) (*models.LinkResult, error) { return s.LinkIndustrial(ctx, "s1", "ACAD-OADE7") },
			setup: func(t *testing.T, m *MockStore) {
				m.On("FindEqual", "users", "supervisorCode", "ACAD-OADE7").
					Return(map[string]store.Document{"a1": doc(t, academic)}, nil)
			},
			message: "This code does not belong to an Industrial Supervisor.",
		},
		{
			name: "industrial code in academic flow",
			link: func(s *Service) (*models.LinkResult, error) { return s.LinkAcademic(ctx, "s1", "IND-JDOE42") },
			setup: func(t *testing.T, m *MockStore) {
				m.On("FindEqual", "users", "supervisorCode", "IND-JDOE42").
					Return(map[string]store.Document{"i1": doc(t, industrial)}, nil)
			},
			message: "This code does not belong to an Academic Supervisor.",
		},
		{
			name: "student missing",
			link: func(s *Service) (*models.LinkResult, error) { return s.LinkIndustrial(ctx, "s1", "ind-jdoe42 ") },
			setup: func(t *testing.T, m *MockStore) {
				m.On("FindEqual", "users", "supervisorCode", "IND-JDOE42").
					Return(map[string]store.Document{"i1": doc(t, industrial)}, nil)
				m.On("Get", "users/s1").Return(nil, nil)
			},
			message: "Student not found.",
		},
		{
			name: "code held twice",
			link: func(s *Service) (*models.LinkResult, error) { return s.LinkIndustrial(ctx, "s1", "IND-JDOE42") },
			setup: func(t *testing.T, m *MockStore) {
				twin := industrial
				twin.ID = "i2"
				m.On("FindEqual", "users", "supervisorCode", "IND-JDOE42").
					Return(map[string]store.Document{"i1": doc(t, industrial), "i2": doc(t, twin)}, nil)
			},
			message: msgAmbiguousCode,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := new(MockStore)
			tc.setup(t, m)

			result, err := tc.link(newMocked(m))
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.Equal(t, tc.message, result.Message)

			m.AssertExpectations(t)
			m.AssertNotCalled(t, "Update", mock.Anything)
			m.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
		})
	}
}

func TestLinkStoreErrorPropagates(t *testing.T) {
	m := new(MockStore)
	m.On("FindEqual", "users", "supervisorCode", "IND-X1").Return(nil, errors.New("network down"))

	result, err := newMocked(m).LinkIndustrial(context.Background(), "s1", "IND-X1")
	assert.Error(t, err)
	assert.Nil(t, result)
}

func seedUsers(t *testing.T) (*Service, *repository.Users) {
	t.Helper()
	s := memory.NewMemoryStore()
	users := repository.NewUsers(s)
	ctx := context.Background()

	require.NoError(t, users.Save(ctx, &models.Student{Contact: models.Contact{ID: "s1", FirstName: "Ada", LastName: "Obi"}}))
	require.NoError(t, users.Save(ctx, &models.Student{Contact: models.Contact{ID: "s2", FirstName: "Bola", LastName: "Ige"}}))
	require.NoError(t, users.Save(ctx, &models.IndustrialSupervisor{
		Contact:     models.Contact{ID: "i1", FirstName: "Jane", LastName: "Doe"},
		Supervision: models.Supervision{SupervisorCode: "IND-JDOE42"},
	}))
	require.NoError(t, users.Save(ctx, &models.AcademicSupervisor{
		Contact:     models.Contact{ID: "a1", FirstName: "Ola", LastName: "Ade"},
		Supervision: models.Supervision{SupervisorCode: "ACAD-OADE7"},
	}))

	return NewService(users, repository.NewEvaluations(s)), users
}

func TestLinkIndustrial(t *testing.T) {
	ctx := context.Background()
	svc, users := seedUsers(t)

	for i := 0; i < 2; i++ {
		result, err := svc.LinkIndustrial(ctx, "s1", "IND-JDOE42")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "Successfully linked to Jane Doe.", result.Message)
		require.NotNil(t, result.Supervisor)
		assert.Equal(t, "i1", result.Supervisor.ID)
	}

	u, err := users.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "i1", u.(*models.Student).IndustrialSupervisorID)

	sup, err := users.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sup.(*models.IndustrialSupervisor).AssignedStudentIDs, "linking twice keeps one membership")
}

func TestRelinkMovesResponsibility(t *testing.T) {
	ctx := context.Background()
	svc, users := seedUsers(t)
	require.NoError(t, users.Save(ctx, &models.IndustrialSupervisor{
		Contact:     models.Contact{ID: "i2", FirstName: "Musa", LastName: "Bello"},
		Supervision: models.Supervision{SupervisorCode: "IND-MBELL3"},
	}))

	for _, code := range []string{"IND-JDOE42", "IND-MBELL3"} {
		result, err := svc.LinkIndustrial(ctx, "s1", code)
		require.NoError(t, err)
		require.True(t, result.Success, result.Message)
	}

	ok, err := svc.Supervises(ctx, "i1", "s1")
	require.NoError(t, err)
	assert.True(t, ok, "the previous supervisor keeps the student on their list")

	ok, err = svc.Responsible(ctx, "i1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Responsible(ctx, "i2", "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Responsible(ctx, "a1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Responsible(ctx, "s2", "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLinkAcademicAndStudents(t *testing.T) {
	ctx := context.Background()
	svc, users := seedUsers(t)

	for _, id := range []string{"s1", "s2"} {
		result, err := svc.LinkAcademic(ctx, id, "acad-oade7")
		require.NoError(t, err)
		require.True(t, result.Success, result.Message)
	}

	u, err := users.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "a1", u.(*models.Student).AcademicSupervisorID)
	assert.Empty(t, u.(*models.Student).IndustrialSupervisorID)

	require.NoError(t, users.Delete(ctx, "s2"))

	students, err := svc.Students(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "s1", students[0].ID)

	ok, err := svc.Supervises(ctx, "a1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Supervises(ctx, "i1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Students(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotSupervisor)
}

func TestEvaluation(t *testing.T) {
	ctx := context.Background()
	svc, _ := seedUsers(t)
	svc.now = func() time.Time { return time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC) }

	missing, err := svc.Evaluation(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	saved, err := svc.SaveEvaluation(ctx, &models.Evaluation{StudentID: "s1", AcademicSupervisorID: "a1", Grade: 78, Comments: "Solid"})
	require.NoError(t, err)
	assert.Equal(t, "s1", saved.ID)
	assert.Equal(t, "2024-06-30", saved.Date)

	got, err := svc.Evaluation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 78.0, got.Grade)
	assert.Equal(t, "Solid", got.Comments)

	_, err = svc.SaveEvaluation(ctx, &models.Evaluation{StudentID: "s1", AcademicSupervisorID: "a1", Grade: 101})
	assert.Error(t, err)
}
