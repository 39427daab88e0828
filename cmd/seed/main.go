package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"usersapi/internal/cache"
	"usersapi/internal/config"
	"usersapi/internal/db"
	apperrors "usersapi/internal/errors"
	"usersapi/internal/model"
	"usersapi/internal/observability"
	"usersapi/internal/repository"
	"usersapi/internal/router"
	"usersapi/internal/service"
)

// SeedUser represents one entry of the seed payload.
type SeedUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin cliente"`
}

var demoUsers = []SeedUser{
	{Name: "Alice Admin", Email: "alice@example.com", Password: "secret123", Role: string(model.RoleAdmin)},
	{Name: "Bob Cliente", Email: "bob@example.com", Password: "secret123", Role: string(model.RoleCliente)},
	{Name: "Carol Cliente", Email: "carol@example.com", Password: "secret123", Role: string(model.RoleCliente)},
}

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)
	log.Info("starting seed script")

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close(gormDB) }()

	if err := db.Migrate(gormDB); err != nil {
		log.Error("failed to run migrations", "err", err)
		os.Exit(1)
	}

	users := demoUsers
	if url := os.Getenv("SEED_USERS_URL"); url != "" {
		log.Info("fetching users", "url", url)
		users, err = fetchUsers(url)
		if err != nil {
			log.Error("failed to fetch users", "err", err)
			os.Exit(1)
		}
	}

	store, err := cache.NewStore(cache.Options{
		Driver:        cfg.CacheDriver,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPass,
		RedisDB:       cfg.RedisDB,
		Namespace:     cfg.CachePrefix,
		TTL:           cfg.CacheTTL,
	})
	if err != nil {
		log.Error("cache init failed", "err", err)
		os.Exit(1)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	// Writes go through the cached repository so stale list results are flushed.
	repo := repository.NewCachedUserRepository(repository.NewUserRepository(gormDB), store, repository.CacheConfig{Logger: log})
	svc := service.NewUserService(repo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	created, skipped, err := seedUsers(ctx, svc, router.NewValidator(), users, log)
	if err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}
	log.Info("seed completed", "created", created, "skipped", skipped, "total", len(users))
}

// fetchUsers downloads a JSON array of SeedUser.
func fetchUsers(url string) ([]SeedUser, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}

	var users []SeedUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return users, nil
}

// seedUsers creates every user that does not exist yet. Entries failing the
// same rules as the create endpoint, or whose email is already taken, are skipped.
func seedUsers(ctx context.Context, svc service.UserService, v echo.Validator, users []SeedUser, log *slog.Logger) (created, skipped int, err error) {
	for i := range users {
		u := users[i]
		if err := v.Validate(&u); err != nil {
			var validationErr *apperrors.ValidationError
			if !errors.As(err, &validationErr) {
				return created, skipped, fmt.Errorf("validate user %s: %w", u.Email, err)
			}
			log.Warn("skipping invalid user", "index", i, "email", u.Email, "details", validationErr.Details)
			skipped++
			continue
		}

		_, err := svc.Create(ctx, service.CreateUserInput{
			Name:     u.Name,
			Email:    u.Email,
			Password: u.Password,
			Role:     model.Role(u.Role),
		})
		switch {
		case apperrors.IsConflict(err):
			skipped++
		case err != nil:
			return created, skipped, fmt.Errorf("create user %s: %w", u.Email, err)
		default:
			created++
		}
	}
	return created, skipped, nil
}
