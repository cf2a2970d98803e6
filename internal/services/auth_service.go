package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/auth"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ads-marketplace/campaign-backend/internal/rbac"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrLoginRejected = errors.New("login rejected")

type NonceStore interface {
	Create(ctx context.Context, address string, ttl time.Duration) (*models.LoginNonce, error)
	Consume(ctx context.Context, nonce, address string) (*models.LoginNonce, error)
}

type UserStore interface {
	UpsertByAddress(ctx context.Context, address string) (*models.User, error)
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

type LoginChallenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService implements wallet sign-in: the client signs a one-time
// message with personal_sign and exchanges the signature for a JWT.
type AuthService struct {
	nonces   NonceStore
	users    UserStore
	audit    AuditLogger
	roles    rbac.Directory
	secret   string
	ttl      time.Duration
	nonceTTL time.Duration
	log      *zap.Logger
}

func NewAuthService(
	nonces NonceStore,
	users UserStore,
	audit AuditLogger,
	roles rbac.Directory,
	secret string,
	ttl, nonceTTL time.Duration,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		nonces:   nonces,
		users:    users,
		audit:    audit,
		roles:    roles,
		secret:   secret,
		ttl:      ttl,
		nonceTTL: nonceTTL,
		log:      log,
	}
}

func (s *AuthService) Challenge(ctx context.Context, address common.Address) (*LoginChallenge, error) {
	n, err := s.nonces.Create(ctx, address.Hex(), s.nonceTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create nonce: %w", err)
	}
	return &LoginChallenge{
		Nonce:     n.Nonce,
		Message:   auth.LoginMessage(address, n.Nonce),
		ExpiresAt: n.ExpiresAt,
	}, nil
}

// Login verifies the signature before consuming the nonce, so a bad
// signature does not burn a valid challenge.
func (s *AuthService) Login(ctx context.Context, address common.Address, nonce, signature string) (*LoginResult, error) {
	if err := auth.VerifyLogin(address, nonce, signature); err != nil {
		s.log.Info("wallet login rejected", zap.String("address", address.Hex()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLoginRejected, err)
	}
	if _, err := s.nonces.Consume(ctx, nonce, address.Hex()); err != nil {
		return nil, fmt.Errorf("%w: nonce is invalid or expired", ErrLoginRejected)
	}

	user, err := s.users.UpsertByAddress(ctx, address.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	if s.roles != nil {
		user.Roles = rbac.RolesOf(s.roles, address)
	}

	token, err := auth.GenerateJWT(s.secret, user.ID, address, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Log(ctx, models.AuditLog{
			ActorAddress: address.Hex(),
			ActorType:    "user",
			Action:       "wallet_login",
			EntityType:   "user",
		})
	}
	return &LoginResult{Token: token, User: user}, nil
}

// Me is the profile of the authenticated wallet.
func (s *AuthService) Me(userID uuid.UUID, address common.Address) *models.User {
	u := &models.User{ID: userID, Address: address.Hex()}
	if s.roles != nil {
		u.Roles = rbac.RolesOf(s.roles, address)
	}
	return u
}
