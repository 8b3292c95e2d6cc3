package services

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"muebles/internal/models"
	"muebles/internal/repositories"
)

// Authenticator resolves a bearer token into the calling actor.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Actor, error)
}

// IdentityProvider is a remote user directory. The role selects which of
// its user tables is consulted.
type IdentityProvider interface {
	Login(ctx context.Context, role models.Role, email, password string) (*models.Actor, error)
	Me(ctx context.Context, role models.Role, token string) (*models.Actor, error)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string       `json:"token"`
	User  models.Actor `json:"user"`
}

// AuthService handles registration, login and token resolution. Without an
// identity provider it issues and verifies HS256 JWTs. With one, every token
// is resolved remotely and local tokens are never accepted.
type AuthService struct {
	users    repositories.UserRepository
	identity IdentityProvider
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService. identity may be nil.
func NewAuthService(users repositories.UserRepository, identity IdentityProvider, jwtSecret string, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		identity: identity,
		secret:   []byte(jwtSecret),
		tokenTTL: 24 * time.Hour,
		logger:   logger.Named("auth"),
	}
}

// RegisterUser validates and stores a local customer account.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := models.Validate(user); err != nil {
		return err
	}
	existing, err := s.users.GetByEmail(ctx, user.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if existing != nil {
		return models.NewValidationError("email", "email already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}
	user.Password = string(hashed)
	user.Role = models.RoleCustomer
	user.Active = true
	if err := s.users.Create(ctx, user); err != nil {
		return errors.Wrap(err, "failed to register user")
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return nil
}

// Login authenticates within a role context. The administrator context
// rejects accounts that are not administrators.
func (s *AuthService) Login(ctx context.Context, role models.Role, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.NewValidationError("credentials", "email and password are required")
	}

	var (
		actor *models.Actor
		err   error
	)
	if s.identity != nil {
		actor, err = s.identity.Login(ctx, role, email, password)
	} else {
		actor, err = s.localLogin(ctx, email, password)
	}
	if err != nil {
		return nil, err
	}
	if role == models.RoleAdministrator && !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	s.logger.Info("user logged in", zap.Int64("user_id", actor.ID), zap.String("role", string(actor.Role)))
	return &LoginResult{Token: actor.Token, User: *actor}, nil
}

func (s *AuthService) localLogin(ctx context.Context, email, password string) (*models.Actor, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errors.Wrap(models.ErrUnauthenticated, "invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errors.Wrap(models.ErrUnauthenticated, "invalid credentials")
	}
	if !user.Active {
		return nil, models.ErrForbidden
	}
	actor := &models.Actor{ID: user.ID, Name: user.Name, Email: user.Email, Role: models.ParseRole(string(user.Role))}
	token, err := s.issueToken(*actor)
	if err != nil {
		return nil, err
	}
	actor.Token = token
	return actor, nil
}

func (s *AuthService) issueToken(actor models.Actor) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": actor.ID,
		"name":    actor.Name,
		"email":   actor.Email,
		"role":    string(actor.Role),
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate token")
	}
	return signed, nil
}

// Authenticate resolves token into an actor.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Actor, error) {
	if token == "" {
		return nil, models.ErrUnauthenticated
	}
	if s.identity == nil {
		actor, err := s.parseToken(token)
		if err != nil {
			return nil, errors.Wrap(models.ErrUnauthenticated, err.Error())
		}
		return actor, nil
	}

	actor, err := s.identity.Me(ctx, models.RoleCustomer, token)
	if errors.Is(err, models.ErrUnauthenticated) {
		actor, err = s.identity.Me(ctx, models.RoleAdministrator, token)
	}
	if err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *AuthService) parseToken(tokenString string) (*models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return nil, errors.New("token carries no user id")
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &models.Actor{
		ID:    int64(id),
		Name:  name,
		Email: email,
		Role:  models.ParseRole(role),
		Token: tokenString,
	}, nil
}
