package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "usersapi/internal/errors"
	"usersapi/internal/model"
	"usersapi/internal/repository"
	"usersapi/internal/service"
)

// UserHandler bundles HTTP handlers.
type UserHandler struct {
	svc service.UserService
	log *slog.Logger
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService, log *slog.Logger) *UserHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UserHandler{svc: svc, log: log}
}

// CreateUserRequest represents a user creation request.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin cliente"`
}

// UpdateUserRequest represents a partial user update; omitted fields are left unchanged.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitnil,min=1"`
	Email    *string `json:"email" validate:"omitnil,email"`
	Password *string `json:"password" validate:"omitnil,min=6"`
	Role     *string `json:"role" validate:"omitnil,oneof=admin cliente"`
}

// ListUsersQuery represents the accepted list filters.
type ListUsersQuery struct {
	Name  *string  `json:"name" validate:"omitnil,min=1"`
	Email *string  `json:"email" validate:"omitnil,email"`
	Roles []string `json:"role" validate:"omitnil,min=1,dive,oneof=admin cliente"`
}

// ListUsers godoc
// @Summary List users
// @Description Every supplied filter must match. name and email match as substrings, role matches any of the listed roles.
// @Tags users
// @Produce json
// @Param name query string false "Substring of the user name"
// @Param email query string false "Substring of the email address"
// @Param role query string false "Comma-separated roles (admin, cliente)"
// @Success 200 {array} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	query := parseListQuery(c.QueryParams())
	if err := c.Validate(&query); err != nil {
		return h.fail(c, err)
	}

	users, err := h.svc.FindAll(c.Request().Context(), query.Filters())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// GetUser godoc
// @Summary Get user by id
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}

	user, err := h.svc.FindByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// CreateUser godoc
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "User payload"
// @Success 201 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/users [post]
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return h.fail(c, err)
	}

	created, err := h.svc.Create(c.Request().Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// UpdateUser godoc
// @Summary Update user
// @Description Only the supplied fields are changed.
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param user body UpdateUserRequest true "Fields to change"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return h.fail(c, err)
	}

	in := service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		in.Role = &role
	}

	updated, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteUser godoc
// @Summary Delete user
// @Tags users
// @Param id path int true "User ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// fail converts err into the response envelope. Unexpected errors are logged
// here and reach the client only as a generic message.
func (h *UserHandler) fail(c echo.Context, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		h.log.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"err", err,
		)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError(`"id" must be a positive integer`)
	}
	return uint(id), nil
}

// parseListQuery reads the list filters. role and roles accept repeated
// values as well as comma-joined lists.
func parseListQuery(params url.Values) ListUsersQuery {
	var q ListUsersQuery
	if params.Has("name") {
		name := params.Get("name")
		q.Name = &name
	}
	if params.Has("email") {
		email := params.Get("email")
		q.Email = &email
	}
	if params.Has("role") || params.Has("roles") {
		q.Roles = splitRoles(append(params["role"], params["roles"]...))
	}
	return q
}

func splitRoles(raw []string) []string {
	roles := make([]string, 0, len(raw))
	for _, value := range raw {
		for _, token := range strings.Split(value, ",") {
			if token = strings.TrimSpace(token); token != "" {
				roles = append(roles, token)
			}
		}
	}
	return roles
}

// Filters converts the validated query into repository filters.
func (q ListUsersQuery) Filters() repository.Filters {
	filters := repository.Filters{}
	if q.Name != nil {
		filters["name"] = *q.Name
	}
	if q.Email != nil {
		filters["email"] = *q.Email
	}
	if q.Roles != nil {
		roles := make([]model.Role, len(q.Roles))
		for i, role := range q.Roles {
			roles[i] = model.Role(role)
		}
		filters["role"] = roles
	}
	return filters
}
