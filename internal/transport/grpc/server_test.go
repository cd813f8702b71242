package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	authv1 "github.com/eldersguild/auth-service/gen/go/auth"
	"github.com/eldersguild/auth-service/internal/config"
	"github.com/eldersguild/auth-service/internal/models"
	"github.com/eldersguild/auth-service/internal/password"
	"github.com/eldersguild/auth-service/internal/service"
	"github.com/eldersguild/auth-service/internal/session"
	"github.com/eldersguild/auth-service/internal/storage"
	"github.com/eldersguild/auth-service/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// Файл unit-тестов транспортного слоя (gRPC) для AuthService.
// Все тесты изолированы: для каждого создаётся отдельный bufconn-сервер.

// testCfg — минимальная конфигурация сервиса для тестов транспорта.
func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-secret",
		Issuer:          "auth-service",
		Audience:        []string{"api-gateway"},
		AccessTokenTTL:  2 * time.Second,
		RefreshTokenTTL: 1 * time.Minute,
	}
}

// newSvcWithMock — фабрика сервисного слоя с gomock-хранилищем пользователей
// и реальным in-memory хранилищем сессий.
func newSvcWithMock(t *testing.T) (*service.Service, *mocks.MockUserStorage, *gomock.Controller) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockUserStorage(ctrl)

	svc, err := service.New(st, session.NewMemory(time.Hour), testCfg(),
		config.LockoutConfig{MaxFailedAttempts: 3, Window: 15 * time.Minute})
	require.NoError(t, err)

	return svc, st, ctrl
}

// startGRPC — поднимает bufconn-gRPC-сервер с переданным сервисом
// и возвращает клиент и функцию очистки.
func startGRPC(t *testing.T, svc *service.Service) (authv1.AuthServiceClient, func()) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	authv1.RegisterAuthServiceServer(s, NewAuthServer(svc))

	go func() { _ = s.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }

	cc, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	cleanup := func() {
		_ = cc.Close()
		s.Stop()
		_ = lis.Close()
	}

	return authv1.NewAuthServiceClient(cc), cleanup
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()

	h, err := password.New(bcrypt.MinCost).Hash(pw)
	require.NoError(t, err)

	return h
}

func storedUser(t *testing.T, username, pw, role string) *models.User {
	t.Helper()

	now := time.Now().UTC()

	return &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: mustHashPW(t, pw),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestLogin_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvcWithMock(t)
	defer ctrl.Finish()

	client, cleanup := startGRPC(t, svc)
	defer cleanup()

	user := storedUser(t, "alice", "Correct-horse-1", models.RoleUser)
	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(user, nil)

	resp, err := client.Login(context.Background(), &authv1.LoginRequest{
		Username: "alice",
		Password: "Correct-horse-1",
	})
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), resp.GetUserId())
	require.Equal(t, models.RoleUser, resp.GetRole())
	require.NotEmpty(t, resp.GetAccessToken())
	require.NotEmpty(t, resp.GetRefreshToken())
	require.NotEmpty(t, resp.GetSessionId())
	require.Greater(t, resp.GetAccessExpiresAt(), time.Now().Unix()-1)
}

func TestLogin_InvalidCredentials_Unauthenticated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvcWithMock(t)
	defer ctrl.Finish()

	client, cleanup := startGRPC(t, svc)
	defer cleanup()

	st.EXPECT().UserByUsername(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)

	_, err := client.Login(context.Background(), &authv1.LoginRequest{
		Username: "ghost",
		Password: "whatever",
	})
	require.Error(t, err)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	// Текст ошибки не различает "нет пользователя" и "неверный пароль".
	require.Equal(t, "invalid username or password", status.Convert(err).Message())
}

func TestLogin_Locked_ResourceExhausted(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvcWithMock(t)
	defer ctrl.Finish()

	client, cleanup := startGRPC(t, svc)
	defer cleanup()

	ctx := context.Background()
	user := storedUser(t, "bob", "Right-password-1", models.RoleUser)

	st.EXPECT().UserByUsername(gomock.Any(), "bob").Return(user, nil).Times(3)
	for i := 0; i < 3; i++ {
		_, err := client.Login(ctx, &authv1.LoginRequest{Username: "bob", Password: "wrong"})
		require.Equal(t, codes.Unauthenticated, status.Code(err))
	}

	// Порог добран: даже верный пароль получает ResourceExhausted.
	_, err := client.Login(ctx, &authv1.LoginRequest{Username: "bob", Password: "Right-password-1"})
	require.Error(t, err)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestLogin_StorageFailure_InternalWithoutDetails(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvcWithMock(t)
	defer ctrl.Finish()

	client, cleanup := startGRPC(t, svc)
	defer cleanup()

	st.EXPECT().UserByUsername(gomock.Any(), "carol").Return(nil, context.DeadlineExceeded)

	_, err := client.Login(context.Background(), &authv1.LoginRequest{
		Username: "carol",
		Password: "pw",
	})
	require.Error(t, err)
	require.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, "internal server error", status.Convert(err).Message())
}

func TestValidateToken_Contract(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvcWithMock(t)
	defer ctrl.Finish()

	client, cleanup := startGRPC(t, svc)
	defer cleanup()

	ctx := context.Background()
	user := storedUser(t, "dave", "Right-password-1", models.RoleAdmin)

	st.EXPECT().UserByUsername(gomock.Any(), "dave").Return(user, nil)
	login, err := client.Login(ctx, &authv1.LoginRequest{Username: "dave", Password: "Right-password-1"})
	require.NoError(t, err)

	// Валидный токен.
	resp, err := client.ValidateToken(ctx, &authv1.ValidateTokenRequest{AccessToken: login.GetAccessToken()})
	require.NoError(t, err)
	require.True(t, resp.GetValid())
	require.Equal(t, user.ID.String(), resp.GetUserId())
	require.Equal(t, "dave", resp.GetUsername())
	require.Equal(t, models.RoleAdmin, resp.GetRole())

	// Мусорный токен: контракт — {Valid:false}, а не RPC-ошибка.
	resp, err = client.ValidateToken(ctx, &authv1.ValidateTokenRequest{AccessToken: "garbage"})
	require.NoError(t, err)
	require.False(t, resp.GetValid())

	// Refresh-токен вместо access: тоже {Valid:false}.
	resp, err = client.ValidateToken(ctx, &authv1.ValidateTokenRequest{AccessToken: login.GetRefreshToken()})
	require.NoError(t, err)
	require.False(t, resp.GetValid())
}

func TestRefreshToken_OKAndInvalid(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvcWithMock(t)
	defer ctrl.Finish()

	client, cleanup := startGRPC(t, svc)
	defer cleanup()

	ctx := context.Background()
	user := storedUser(t, "erin", "Right-password-1", models.RoleUser)

	st.EXPECT().UserByUsername(gomock.Any(), "erin").Return(user, nil)
	login, err := client.Login(ctx, &authv1.LoginRequest{Username: "erin", Password: "Right-password-1"})
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	resp, err := client.RefreshToken(ctx, &authv1.RefreshTokenRequest{RefreshToken: login.GetRefreshToken()})
	require.NoError(t, err)
	require.NotEmpty(t, resp.GetAccessToken())
	require.Greater(t, resp.GetAccessExpiresAt(), time.Now().Unix()-1)

	// Access-токен вместо refresh — Unauthenticated.
	_, err = client.RefreshToken(ctx, &authv1.RefreshTokenRequest{RefreshToken: login.GetAccessToken()})
	require.Error(t, err)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.Equal(t, "invalid refresh token", status.Convert(err).Message())
}

func TestValidateSession_AndLogout(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvcWithMock(t)
	defer ctrl.Finish()

	client, cleanup := startGRPC(t, svc)
	defer cleanup()

	ctx := context.Background()
	user := storedUser(t, "frank", "Right-password-1", models.RoleUser)

	st.EXPECT().UserByUsername(gomock.Any(), "frank").Return(user, nil)
	login, err := client.Login(ctx, &authv1.LoginRequest{Username: "frank", Password: "Right-password-1"})
	require.NoError(t, err)

	// Живая сессия.
	resp, err := client.ValidateSession(ctx, &authv1.ValidateSessionRequest{SessionId: login.GetSessionId()})
	require.NoError(t, err)
	require.True(t, resp.GetValid())
	require.Equal(t, user.ID.String(), resp.GetUserId())

	// Неизвестная сессия: {Valid:false} без RPC-ошибки.
	resp, err = client.ValidateSession(ctx, &authv1.ValidateSessionRequest{SessionId: "no-such-session"})
	require.NoError(t, err)
	require.False(t, resp.GetValid())

	// Logout отзывает сессию; повторный вызов тоже Ok (идемпотентность).
	out, err := client.Logout(ctx, &authv1.LogoutRequest{SessionId: login.GetSessionId()})
	require.NoError(t, err)
	require.True(t, out.GetOk())

	out, err = client.Logout(ctx, &authv1.LogoutRequest{SessionId: login.GetSessionId()})
	require.NoError(t, err)
	require.True(t, out.GetOk())

	// После отзыва сессия невалидна.
	resp, err = client.ValidateSession(ctx, &authv1.ValidateSessionRequest{SessionId: login.GetSessionId()})
	require.NoError(t, err)
	require.False(t, resp.GetValid())
}
