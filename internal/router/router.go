package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"usersapi/internal/config"
	apperrors "usersapi/internal/errors"
	"usersapi/internal/handler"
	"usersapi/internal/observability"
)

// Metrics bundles the collectors and the registry that exposes them.
type Metrics struct {
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log *slog.Logger,
	metrics *Metrics,
	userHandler *handler.UserHandler,
	healthHandler *handler.HealthHandler,
) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(observability.TracingMiddleware(cfg.ServiceName))
	e.Use(RequestLogger(log))
	if metrics != nil && metrics.Prom != nil {
		e.Use(metrics.Prom.EchoMiddleware())
	}

	// Add validator
	e.Validator = NewValidator()

	e.GET("/healthz", healthHandler.Healthz)
	e.GET("/readyz", healthHandler.Readyz)

	if metrics != nil && metrics.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{})))
	}

	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/api-docs", func(c echo.Context) error {
		return c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	api := e.Group("/api")

	api.GET("/users", userHandler.ListUsers)
	api.GET("/users/:id", userHandler.GetUser)
	api.POST("/users", userHandler.CreateUser)
	api.PUT("/users/:id", userHandler.UpdateUser)
	api.DELETE("/users/:id", userHandler.DeleteUser)
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(c.Request().Context(), level, "http_request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latency_ms", v.Latency.Milliseconds()),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator builds a validator that reports fields by their json name.
func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface. Every violation is reported,
// not just the first one.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, validationMessage(fe))
	}
	return apperrors.NewValidationError(details...)
}

func validationMessage(fe validator.FieldError) string {
	field := fmt.Sprintf("%q", fe.Field())
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		if fe.Kind() == reflect.Slice {
			return field + " must contain at least " + param + " items"
		}
		return field + " length must be at least " + param + " characters long"
	case "max":
		return field + " length must be at most " + param + " characters long"
	case "oneof":
		return field + " must be one of [" + strings.ReplaceAll(param, " ", ", ") + "]"
	default:
		if param != "" {
			return fmt.Sprintf("%s failed %s validation (%s)", field, fe.Tag(), param)
		}
		return field + " failed " + fe.Tag() + " validation"
	}
}
