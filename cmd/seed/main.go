// seed — операторский инструмент первоначального наполнения identity-хранилища.
// Движок аутентификации пользователей не создаёт; этот инструмент — замена
// внешней системы управления учётками для локальной разработки и стендов.
//
// Использование:
//
//	seed --config local.yaml --username alice --password 'S3cret!pw' --role admin
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/eldersguild/auth-service/internal/config"
	"github.com/eldersguild/auth-service/internal/models"
	"github.com/eldersguild/auth-service/internal/password"
	"github.com/eldersguild/auth-service/internal/storage"
	"github.com/eldersguild/auth-service/internal/storage/postgres"

	"github.com/google/uuid"
)

func main() {
	var (
		configPath string
		username   string
		pass       string
		role       string
	)
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&username, "username", "", "username to create")
	flag.StringVar(&pass, "password", "", "plaintext password (hashed before insert)")
	flag.StringVar(&role, "role", models.RoleUser, "role tag: admin|user")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if username == "" || pass == "" {
		log.Error("username and password are required")
		os.Exit(2)
	}
	if role != models.RoleAdmin && role != models.RoleUser {
		log.Error("unknown role", slog.String("role", role))
		os.Exit(2)
	}

	cfg := config.MustLoad(configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	str, err := postgres.New(ctx, cfg.DB.DatabaseURL)
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer str.Close()

	hash, err := password.New(0).Hash(pass)
	if err != nil {
		log.Error("hash_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := str.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			log.Error("username already taken", slog.String("username", username))
			os.Exit(1)
		}

		log.Error("save_user_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("user_created",
		slog.String("user_id", user.ID.String()),
		slog.String("username", username),
		slog.String("role", role),
	)
}
