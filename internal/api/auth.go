package api

import (
	"errors"
	"log/slog"
	"net/http"

	"deepvision-backend/internal/auth"
	"deepvision-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

type AuthService struct {
	credentials *auth.CredentialStore
	signer      *auth.Signer
}

func NewAuthService(credentials *auth.CredentialStore, signer *auth.Signer) *AuthService {
	return &AuthService{credentials: credentials, signer: signer}
}

func (s *AuthService) AddRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", RestHandler(s.Login))
		r.Post("/register", RestHandler(s.Register))
		r.Post("/forgot", RestHandler(s.ForgotPassword))
		r.Post("/reset", RestHandler(s.ResetPassword))
		r.Get("/me", RestHandler(s.Me))
	})
}

func (s *AuthService) Login(r *http.Request) (any, error) {
	req, err := ParseRequest[api.LoginRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Username == "" || req.Password == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "missing credentials")
	}

	user, err := s.credentials.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, CodedErrorf(http.StatusUnauthorized, "invalid credentials")
		}
		slog.Error("error authenticating user", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "login failed")
	}

	token, err := s.signer.Issue(user.Id, user.Username)
	if err != nil {
		slog.Error("error issuing token", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "login failed")
	}
	return api.TokenResponse{Token: token}, nil
}

func (s *AuthService) Register(r *http.Request) (any, error) {
	req, err := ParseRequest[api.RegisterRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Username == "" || req.Password == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "missing credentials")
	}

	user, err := s.credentials.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return nil, CodedErrorf(http.StatusConflict, "username already exists")
		}
		slog.Error("error registering user", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "registration failed")
	}

	token, err := s.signer.Issue(user.Id, user.Username)
	if err != nil {
		slog.Error("error issuing token", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "registration failed")
	}
	return api.TokenResponse{Token: token}, nil
}

func (s *AuthService) ForgotPassword(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ForgotPasswordRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Username == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "missing username")
	}

	token, err := s.credentials.RequestReset(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "user not found")
		}
		slog.Error("error creating reset token", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "reset request failed")
	}
	return api.ForgotPasswordResponse{Token: token}, nil
}

func (s *AuthService) ResetPassword(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ResetPasswordRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Username == "" || req.Token == "" || req.Password == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "missing fields")
	}

	if err := s.credentials.CompleteReset(r.Context(), req.Username, req.Token, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			return nil, CodedErrorf(http.StatusBadRequest, "invalid reset token")
		}
		slog.Error("error resetting password", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "reset failed")
	}
	return api.StatusResponse{Status: "ok"}, nil
}

// Me resolves the caller's profile from the bearer token. It is registered
// outside the auth middleware so it can report 401 and 404 distinctly.
func (s *AuthService) Me(r *http.Request) (any, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "unauthorized")
	}

	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, CodedErrorf(http.StatusUnauthorized, "unauthorized")
	}

	user, err := s.credentials.GetUser(r.Context(), claims.UserId)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "user not found")
		}
		slog.Error("error loading user", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading user")
	}
	return api.MeResponse{User: toApiUser(user)}, nil
}
