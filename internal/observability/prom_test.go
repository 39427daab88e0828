package observability

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestProm_ObserveDB(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	require.NoError(t, p.ObserveDB("users.find_all", func() error { return nil }))

	err := p.ObserveDB("users.create", func() error { return gorm.ErrDuplicatedKey })
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	assert.Equal(t, 2, testutil.CollectAndCount(p.DbQueryDuration))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation")))
}

func TestProm_ObserveDB_NotFoundIsOK(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("users.find_by_id", func() error { return gorm.ErrRecordNotFound })
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.Equal(t, 0, testutil.CollectAndCount(p.DbErrorsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(p.DbQueryDuration))
	assert.True(t, p.DbQueryDuration.DeleteLabelValues("users.find_by_id", "ok"))
}

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "duplicate", err: fmt.Errorf("save: %w", gorm.ErrDuplicatedKey), want: "unique_violation"},
		{name: "pg unique", err: &pgconn.PgError{Code: "23505"}, want: "unique_violation"},
		{name: "pg deadlock", err: &pgconn.PgError{Code: "40P01"}, want: "deadlock"},
		{name: "pg other", err: &pgconn.PgError{Code: "42P01"}, want: "pg_42P01"},
		{name: "timeout", err: errors.New("i/o timeout"), want: "timeout"},
		{name: "connection", err: errors.New("connection refused"), want: "connection"},
		{name: "unknown", err: errors.New("boom"), want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDBErr(tt.err))
		})
	}
}

func TestProm_EchoMiddleware(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())
	e := echo.New()
	e.Use(p.EchoMiddleware())
	e.GET("/api/users/:id", func(c echo.Context) error {
		if c.Param("id") == "0" {
			return echo.NewHTTPError(http.StatusBadRequest, "bad id")
		}
		return c.NoContent(http.StatusNoContent)
	})

	for _, path := range []string{"/api/users/1", "/api/users/2", "/api/users/0"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(p.RequestsTotal.WithLabelValues(http.MethodGet, "/api/users/:id", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.RequestsTotal.WithLabelValues(http.MethodGet, "/api/users/:id", "400")))
	assert.Equal(t, float64(0), testutil.ToFloat64(p.InFlight.WithLabelValues(http.MethodGet, "/api/users/:id")))
}

func TestProm_RecordCacheLookup(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())
	p.RecordCacheLookup("hit")
	p.RecordCacheLookup("hit")
	p.RecordCacheLookup("miss")

	assert.Equal(t, float64(2), testutil.ToFloat64(p.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.CacheLookups.WithLabelValues("miss")))
}
