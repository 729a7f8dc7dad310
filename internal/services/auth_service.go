package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"orderdesk/internal/models"
	"orderdesk/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long a session token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims are the application claims embedded in a session token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.StandardClaims
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// NewUser holds the fields needed to create an account.
type NewUser struct {
	Username        string
	Password        string
	DistributorName string
	Email           string
	Phone           string
	Address         string
	Provisioned     bool
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	hashCost  int
}

// NewAuthService creates a new AuthService. A non-positive ttl selects DefaultTokenTTL.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  ttl,
		hashCost:  bcrypt.DefaultCost,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// burnCompare spends the same bcrypt work as a real password check so that an
// unknown username cannot be told apart by response time.
func burnCompare(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("orderdesk-placeholder"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Authenticate verifies the credentials and issues a session.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		burnCompare(password)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(user)
}

// Register creates a distributor account and issues a session for it.
// Usernames in the provisioned-distributor namespace cannot be self-registered.
func (s *AuthService) Register(ctx context.Context, in NewUser) (*Session, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(in.Username)), distributorUsernamePrefix) {
		return nil, invalidField("username", fmt.Sprintf("must not start with %q", distributorUsernamePrefix))
	}
	in.Provisioned = false
	user, err := s.CreateUser(ctx, in, models.RoleDistributor)
	if err != nil {
		return nil, err
	}
	return s.issueSession(user)
}

// CreateUser hashes the password and persists a user with the given role.
// A taken username yields ErrDuplicateUsername.
func (s *AuthService) CreateUser(ctx context.Context, in NewUser, role string) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, invalidField("username", "is required")
	}
	if in.Password == "" {
		return nil, invalidField("password", "is required")
	}
	if role != models.RoleAdmin && role != models.RoleDistributor {
		return nil, invalidField("role", fmt.Sprintf("unknown role %q", role))
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:        username,
		Password:        string(hashed),
		Role:            role,
		DistributorName: strings.TrimSpace(in.DistributorName),
		Email:           strings.TrimSpace(in.Email),
		Phone:           strings.TrimSpace(in.Phone),
		Address:         strings.TrimSpace(in.Address),
		Provisioned:     in.Provisioned,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap administrator unless an admin already
// exists. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.userRepo.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, NewUser{
		Username:        username,
		Password:        password,
		DistributorName: "Administrator",
	}, models.RoleAdmin); err != nil {
		return false, fmt.Errorf("failed to bootstrap admin %s: %w", username, err)
	}
	log.Info().Str("username", username).Msg("bootstrap admin created")
	return true, nil
}

// Me returns the stored profile of the authenticated caller.
func (s *AuthService) Me(ctx context.Context, id models.Identity) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueSession(user *models.User) (*Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   user.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Session{Token: tokenString, ExpiresAt: expiresAt, User: user}, nil
}

// Resolve parses and validates a session token, returning the caller identity.
func (s *AuthService) Resolve(tokenString string) (models.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, ErrInvalidToken
	}
	if claims.UserID == "" || (claims.Role != models.RoleAdmin && claims.Role != models.RoleDistributor) {
		return models.Identity{}, ErrInvalidToken
	}
	return models.Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}
