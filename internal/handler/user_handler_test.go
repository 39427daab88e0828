package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "usersapi/internal/errors"
	"usersapi/internal/handler"
	"usersapi/internal/model"
	"usersapi/internal/repository"
	"usersapi/internal/router"
	"usersapi/internal/service"
)

// MockUserService is a mock implementation of UserService.
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) FindAll(ctx context.Context, filters repository.Filters) ([]model.User, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserService) Create(ctx context.Context, in service.CreateUserInput) (*model.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, id uint, in service.UpdateUserInput) (*model.User, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestServer(svc service.UserService) *echo.Echo {
	e := echo.New()
	e.Validator = router.NewValidator()
	h := handler.NewUserHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	e.GET("/api/users", h.ListUsers)
	e.GET("/api/users/:id", h.GetUser)
	e.POST("/api/users", h.CreateUser)
	e.PUT("/api/users/:id", h.UpdateUser)
	e.DELETE("/api/users/:id", h.DeleteUser)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func alice() *model.User {
	return &model.User{ID: 1, Name: "Alice", Email: "alice@example.com", PasswordHash: "secret-hash", Role: model.RoleAdmin}
}

func TestListUsers_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  repository.Filters
	}{
		{name: "no filters", query: "", want: repository.Filters{}},
		{name: "name and email", query: "?name=Al&email=alice@example.com", want: repository.Filters{"name": "Al", "email": "alice@example.com"}},
		{name: "comma separated roles", query: "?role=admin,cliente", want: repository.Filters{"role": []model.Role{model.RoleAdmin, model.RoleCliente}}},
		{name: "repeated roles", query: "?role=admin&roles=cliente", want: repository.Filters{"role": []model.Role{model.RoleAdmin, model.RoleCliente}}},
		{name: "unknown query params ignored", query: "?page=2&name=Bo", want: repository.Filters{"name": "Bo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUserService)
			svc.On("FindAll", mock.Anything, tt.want).Return([]model.User{*alice()}, nil)

			rec := do(newTestServer(svc), http.MethodGet, "/api/users"+tt.query, "")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.NotContains(t, rec.Body.String(), "secret-hash")
			assert.NotContains(t, rec.Body.String(), "password")
			svc.AssertExpectations(t)
		})
	}
}

func TestListUsers_EmptyResultIsArray(t *testing.T) {
	svc := new(MockUserService)
	svc.On("FindAll", mock.Anything, mock.Anything).Return([]model.User{}, nil)

	rec := do(newTestServer(svc), http.MethodGet, "/api/users?name=zzz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListUsers_InvalidRole(t *testing.T) {
	svc := new(MockUserService)

	rec := do(newTestServer(svc), http.MethodGet, "/api/users?role=admin,root", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, apperrors.ValidationMessage, resp.Message)
	assert.Equal(t, []string{`"role[1]" must be one of [admin, cliente]`}, resp.Details)
	svc.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestListUsers_InvalidEmail(t *testing.T) {
	svc := new(MockUserService)

	rec := do(newTestServer(svc), http.MethodGet, "/api/users?email=example&role=", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{
		`"email" must be a valid email`,
		`"role" must contain at least 1 items`,
	}, decodeError(t, rec).Details)
}

func TestGetUser(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		setup      func(svc *MockUserService)
		wantStatus int
		wantMsg    string
	}{
		{
			name: "found",
			path: "/api/users/1",
			setup: func(svc *MockUserService) {
				svc.On("FindByID", mock.Anything, uint(1)).Return(alice(), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not found",
			path: "/api/users/9",
			setup: func(svc *MockUserService) {
				svc.On("FindByID", mock.Anything, uint(9)).Return(nil, &apperrors.NotFoundError{Entity: "User", ID: 9})
			},
			wantStatus: http.StatusNotFound,
			wantMsg:    "User with id 9 not found",
		},
		{
			name:       "non numeric id",
			path:       "/api/users/abc",
			setup:      func(*MockUserService) {},
			wantStatus: http.StatusBadRequest,
			wantMsg:    apperrors.ValidationMessage,
		},
		{
			name:       "zero id",
			path:       "/api/users/0",
			setup:      func(*MockUserService) {},
			wantStatus: http.StatusBadRequest,
			wantMsg:    apperrors.ValidationMessage,
		},
		{
			name: "store failure is hidden",
			path: "/api/users/1",
			setup: func(svc *MockUserService) {
				svc.On("FindByID", mock.Anything, uint(1)).Return(nil, errors.New("dial tcp: connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUserService)
			tt.setup(svc)

			rec := do(newTestServer(svc), http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decodeError(t, rec).Message)
				return
			}
			var user map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
			assert.Equal(t, "alice@example.com", user["email"])
			assert.NotContains(t, user, "passwordHash")
			assert.NotContains(t, user, "password")
		})
	}
}

func TestCreateUser(t *testing.T) {
	svc := new(MockUserService)
	svc.On("Create", mock.Anything, service.CreateUserInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
		Role:     model.RoleAdmin,
	}).Return(alice(), nil)

	rec := do(newTestServer(svc), http.MethodPost, "/api/users",
		`{"name":"Alice","email":"alice@example.com","password":"secret123","role":"admin"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
	svc.AssertExpectations(t)
}

func TestCreateUser_ValidationCollectsAllViolations(t *testing.T) {
	svc := new(MockUserService)

	rec := do(newTestServer(svc), http.MethodPost, "/api/users",
		`{"email":"not-an-email","password":"123","role":"root"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, apperrors.ValidationMessage, resp.Message)
	assert.Equal(t, []string{
		`"name" is required`,
		`"email" must be a valid email`,
		`"password" length must be at least 6 characters long`,
		`"role" must be one of [admin, cliente]`,
	}, resp.Details)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateUser_MalformedBody(t *testing.T) {
	svc := new(MockUserService)

	rec := do(newTestServer(svc), http.MethodPost, "/api/users", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rec).Message)
}

func TestCreateUser_Conflict(t *testing.T) {
	svc := new(MockUserService)
	svc.On("Create", mock.Anything, mock.Anything).
		Return(nil, &apperrors.ConflictError{Entity: "User", Field: "email", Value: "alice@example.com"})

	rec := do(newTestServer(svc), http.MethodPost, "/api/users",
		`{"name":"Alice","email":"alice@example.com","password":"secret123","role":"cliente"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "User with email alice@example.com already exists", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestUpdateUser(t *testing.T) {
	newName := "Alicia"
	cliente := model.RoleCliente

	svc := new(MockUserService)
	svc.On("Update", mock.Anything, uint(1), service.UpdateUserInput{Name: &newName, Role: &cliente}).
		Return(&model.User{ID: 1, Name: newName, Email: "alice@example.com", Role: cliente}, nil)

	rec := do(newTestServer(svc), http.MethodPut, "/api/users/1", `{"name":"Alicia","role":"cliente"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Alicia"`)
	svc.AssertExpectations(t)
}

func TestUpdateUser_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		setup      func(svc *MockUserService)
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "invalid fields",
			path:       "/api/users/1",
			body:       `{"email":"nope","password":"1"}`,
			setup:      func(*MockUserService) {},
			wantStatus: http.StatusBadRequest,
			wantMsg:    apperrors.ValidationMessage,
		},
		{
			name: "missing user",
			path: "/api/users/5",
			body: `{"name":"x"}`,
			setup: func(svc *MockUserService) {
				svc.On("Update", mock.Anything, uint(5), mock.Anything).Return(nil, &apperrors.NotFoundError{Entity: "User", ID: 5})
			},
			wantStatus: http.StatusNotFound,
			wantMsg:    "User with id 5 not found",
		},
		{
			name: "email taken",
			path: "/api/users/1",
			body: `{"email":"bob@example.com"}`,
			setup: func(svc *MockUserService) {
				svc.On("Update", mock.Anything, uint(1), mock.Anything).
					Return(nil, &apperrors.ConflictError{Entity: "User", Field: "email", Value: "bob@example.com"})
			},
			wantStatus: http.StatusConflict,
			wantMsg:    "User with email bob@example.com already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUserService)
			tt.setup(svc)

			rec := do(newTestServer(svc), http.MethodPut, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec).Message)
		})
	}
}

func TestDeleteUser(t *testing.T) {
	tests := []struct {
		name       string
		deleteErr  error
		wantStatus int
	}{
		{name: "deleted", wantStatus: http.StatusNoContent},
		{name: "missing", deleteErr: &apperrors.NotFoundError{Entity: "User", ID: 3}, wantStatus: http.StatusNotFound},
		{name: "store failure", deleteErr: errors.New("locked"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUserService)
			svc.On("Delete", mock.Anything, uint(3)).Return(tt.deleteErr)

			rec := do(newTestServer(svc), http.MethodDelete, "/api/users/3", "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}
