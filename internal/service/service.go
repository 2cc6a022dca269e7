package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/finclass/bank-sim/internal/config"
	"github.com/finclass/bank-sim/internal/integrations/rates"
	"github.com/finclass/bank-sim/internal/models"
	"github.com/finclass/bank-sim/internal/repository"
	"github.com/finclass/bank-sim/internal/scheduler"
)

// Service handles business logic
type Service struct {
	repo   *repository.Repository
	sched  *scheduler.Scheduler
	engine *scheduler.Engine
	rates  *rates.Client
	log    *logrus.Logger
	config *config.Config
}

// NewService initializes a new service
func NewService(repo *repository.Repository, sched *scheduler.Scheduler, engine *scheduler.Engine, ratesClient *rates.Client, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{repo: repo, sched: sched, engine: engine, rates: ratesClient, log: log, config: cfg}
}

// Register creates a new user with hashed password
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", user.ID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// OpenAccount creates a new account for the authenticated user
func (s *Service) OpenAccount(ctx context.Context, currency string) (*models.Account, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if currency == "" {
		currency = "RUB"
	}

	account := &models.Account{
		UserID:   userID,
		Balance:  0.0,
		Currency: currency,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.Infof("Account created for user %d: %s", userID, account.Currency)
	return account, nil
}

// GetAccount returns an owned account with history and schedules
func (s *Service) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	if err := s.checkOwnership(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.Account(ctx, accountID)
}

// ScheduledInput describes a new bill or payment definition.
type ScheduledInput struct {
	Kind     models.Kind     `json:"kind"`
	Amount   float64         `json:"amount"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Interval models.Interval `json:"interval"`
}

// AddScheduled creates a scheduled transaction on an owned account and hands
// it to the live scheduler. The first due date is derived up front and
// stored in the same insert as the definition, so a crash between creation
// and arming can never leave a dateless schedule behind.
func (s *Service) AddScheduled(ctx context.Context, accountID int64, input ScheduledInput) (*models.ScheduledTransaction, error) {
	if err := s.checkOwnership(ctx, accountID); err != nil {
		return nil, err
	}
	if err := validateScheduled(input); err != nil {
		return nil, err
	}

	now := time.Now().In(s.config.Location())
	tx := &models.ScheduledTransaction{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Kind:         input.Kind,
		Amount:       input.Amount,
		Name:         input.Name,
		Category:     input.Category,
		Interval:     input.Interval,
		CreationDate: now,
	}
	due, err := scheduler.FirstDue(now, tx)
	if err != nil {
		return nil, err
	}
	tx.NextExecution = &due
	if err := s.repo.CreateScheduled(ctx, tx); err != nil {
		return nil, err
	}

	account, err := s.repo.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.sched.Add(ctx, account, tx); err != nil {
		return nil, err
	}

	s.log.Infof("Scheduled %s %q added on account %d (%s)", tx.Kind, tx.Name, accountID, tx.Interval)
	return tx, nil
}

// RemoveScheduled cancels the live timer first and only then deletes the
// persisted record, so a dangling fire cannot resurrect a deleted obligation.
func (s *Service) RemoveScheduled(ctx context.Context, accountID int64, txID string) error {
	if err := s.checkOwnership(ctx, accountID); err != nil {
		return err
	}

	account, err := s.repo.Account(ctx, accountID)
	if err != nil {
		return err
	}
	for _, tx := range account.Scheduled() {
		if tx.ID != txID {
			continue
		}
		s.sched.Cancel(accountID, tx.Kind, txID)
		if err := s.repo.RemoveScheduled(ctx, accountID, txID); err != nil {
			return err
		}
		s.log.Infof("Scheduled %s %q removed from account %d", tx.Kind, tx.Name, accountID)
		return nil
	}
	return fmt.Errorf("scheduled transaction not found")
}

// RunCatchup triggers a catch-up pass on demand
func (s *Service) RunCatchup(ctx context.Context) *models.CatchupResult {
	return s.engine.Run(ctx)
}

// CatchupStats aggregates catch-up activity over the last days days
func (s *Service) CatchupStats(ctx context.Context, days int) (*models.CatchupStats, error) {
	if days <= 0 {
		days = 7
	}
	return s.engine.Stats(ctx, days)
}

// KeyRate returns the current central-bank key rate
func (s *Service) KeyRate() (float64, error) {
	return s.rates.KeyRate()
}

func (s *Service) checkOwnership(ctx context.Context, accountID int64) error {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return err
	}
	ownerID, err := s.repo.FindAccountOwner(ctx, accountID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return fmt.Errorf("account does not belong to user")
	}
	return nil
}

func userIDFromContext(ctx context.Context) (int64, error) {
	userIDStr, ok := ctx.Value("userID").(string)
	if !ok || userIDStr == "" {
		return 0, fmt.Errorf("user ID not found in context")
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID: %w", err)
	}
	return userID, nil
}

// validateScheduled enforces interval and amount-sign consistency: bills flow
// out, payments flow in. Interest payments may carry a zero amount since it
// is derived at execution time.
func validateScheduled(input ScheduledInput) error {
	if input.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !input.Interval.Valid() {
		return fmt.Errorf("invalid interval %q", input.Interval)
	}
	switch input.Kind {
	case models.KindBill:
		if input.Amount >= 0 {
			return fmt.Errorf("bill amount must be negative")
		}
	case models.KindPayment:
		if input.Amount < 0 {
			return fmt.Errorf("payment amount must not be negative")
		}
		if input.Amount == 0 && input.Category != models.CategoryInterest {
			return fmt.Errorf("payment amount must be positive")
		}
	default:
		return fmt.Errorf("invalid kind %q", input.Kind)
	}
	return nil
}
