// transport/grpc содержит реализацию gRPC-эндпоинтов AuthService.
// Здесь выполняется только маппинг данных и ошибок доменного слоя (service) в gRPC.
// Вся валидация и бизнес-логика находятся в пакете service.
//
// Принципы:
//   - Контекст запроса прокидывается в сервис без потерь;
//   - Ошибки сервиса явно транслируются в коды gRPC:
//   - ErrAccountLocked -> codes.ResourceExhausted ("try again later");
//   - ErrInvalidCredentials -> codes.Unauthenticated;
//   - ErrInvalidToken/ErrTokenExpired/ErrWrongTokenType -> codes.Unauthenticated;
//   - ErrSessionNotFound/ErrSessionExpired -> codes.Unauthenticated;
//   - иные ошибки -> codes.Internal c единым безопасным сообщением;
//   - ValidateToken и ValidateSession при невалидном входе НЕ возвращают
//     RPC-ошибку, а отдают {Valid:false} (контракт эндпоинтов).
//
// Безопасность:
//   - Для codes.Internal наружу не утекают детали внутренних ошибок; подробности
//     должны попадать в логи через интерсепторы на уровне сервера;
//   - Тексты ошибок Unauthenticated не различают "нет пользователя" и
//     "неверный пароль".
package grpc

import (
	"context"
	"errors"

	authv1 "github.com/eldersguild/auth-service/gen/go/auth"
	"github.com/eldersguild/auth-service/internal/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type AuthServer struct {
	authv1.UnimplementedAuthServiceServer
	service *service.Service
}

// NewAuthServer создаёт gRPC-сервер аутентификации поверх сервисного слоя.
func NewAuthServer(service *service.Service) *AuthServer {
	return &AuthServer{service: service}
}

// Login аутентифицирует пользователя, возвращает пару токенов и сессию.
// Маппинг ошибок:
//   - ErrAccountLocked -> ResourceExhausted;
//   - ErrInvalidCredentials -> Unauthenticated;
//   - прочее -> Internal (без раскрытия деталей).
func (s *AuthServer) Login(ctx context.Context, req *authv1.LoginRequest) (*authv1.LoginResponse, error) {
	tokenPair, user, err := s.service.Login(ctx, req.GetUsername(), req.GetPassword())
	if err != nil {
		if errors.Is(err, service.ErrAccountLocked) {
			return nil, status.Error(codes.ResourceExhausted, "account temporarily locked, try again later")
		}

		if errors.Is(err, service.ErrInvalidCredentials) {
			return nil, status.Error(codes.Unauthenticated, "invalid username or password")
		}

		return nil, status.Errorf(codes.Internal, "internal server error")
	}

	return &authv1.LoginResponse{
		UserId:          user.UserID.String(),
		Role:            user.Role,
		AccessToken:     tokenPair.AccessToken,
		RefreshToken:    tokenPair.RefreshToken,
		SessionId:       tokenPair.SessionID,
		AccessExpiresAt: tokenPair.AccessExpiresAt.Unix(),
	}, nil
}

// ValidateToken валидирует access-токен (JWT).
// Контракт: при невалидном/просроченном/чужого типа токене RPC-ошибку
// не возвращает — отдаёт {Valid:false}. При прочих ошибках — Internal.
func (s *AuthServer) ValidateToken(ctx context.Context, req *authv1.ValidateTokenRequest) (*authv1.ValidateTokenResponse, error) {
	claims, err := s.service.VerifyAccess(ctx, req.GetAccessToken())
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) || errors.Is(err, service.ErrWrongTokenType) {
			return &authv1.ValidateTokenResponse{Valid: false}, nil
		}

		return nil, status.Errorf(codes.Internal, "internal server error")
	}

	return &authv1.ValidateTokenResponse{
		Valid:    true,
		UserId:   claims.UserID.String(),
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// RefreshToken выпускает новый access-токен по валидному refresh-токену.
// Маппинг ошибок:
//   - ErrInvalidToken/ErrTokenExpired/ErrWrongTokenType -> Unauthenticated;
//   - прочее -> Internal.
func (s *AuthServer) RefreshToken(ctx context.Context, req *authv1.RefreshTokenRequest) (*authv1.RefreshTokenResponse, error) {
	accessToken, expiresAt, err := s.service.Refresh(ctx, req.GetRefreshToken())
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) || errors.Is(err, service.ErrWrongTokenType) {
			return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
		}

		return nil, status.Errorf(codes.Internal, "internal server error")
	}

	return &authv1.RefreshTokenResponse{
		AccessToken:     accessToken,
		AccessExpiresAt: expiresAt.Unix(),
	}, nil
}

// ValidateSession проверяет серверную сессию (скользящее истечение).
// Контракт: неизвестная/истёкшая сессия — не RPC-ошибка, а {Valid:false}.
func (s *AuthServer) ValidateSession(ctx context.Context, req *authv1.ValidateSessionRequest) (*authv1.ValidateSessionResponse, error) {
	user, err := s.service.ValidateSession(ctx, req.GetSessionId())
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrSessionExpired) {
			return &authv1.ValidateSessionResponse{Valid: false}, nil
		}

		return nil, status.Errorf(codes.Internal, "internal server error")
	}

	return &authv1.ValidateSessionResponse{
		Valid:    true,
		UserId:   user.UserID.String(),
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// Logout отзывает сессию. Идемпотентен: повторный вызов тоже возвращает Ok.
func (s *AuthServer) Logout(ctx context.Context, req *authv1.LogoutRequest) (*authv1.LogoutResponse, error) {
	if err := s.service.Logout(ctx, req.GetSessionId()); err != nil {
		return nil, status.Errorf(codes.Internal, "internal server error")
	}

	return &authv1.LogoutResponse{Ok: true}, nil
}
