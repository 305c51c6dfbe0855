// Package limits provides optional bounds on score increments
//
// By default every integer amount is accepted, negative and huge values
// included. Operators can cap the magnitude of a single increment and
// refuse negative amounts.
package limits

import (
	"errors"
	"fmt"

	"github.com/alexbotov/smashrelay/internal/config"
)

var (
	ErrNegativeIncrement = errors.New("negative increments are not allowed")
	ErrIncrementTooLarge = errors.New("increment exceeds the configured maximum")
)

// Service checks increment amounts against the configured policy
type Service struct {
	maxIncrement  int64
	allowNegative bool
}

// New creates a new limits service
func New(cfg config.LimitsConfig) *Service {
	return &Service{
		maxIncrement:  cfg.MaxIncrement,
		allowNegative: cfg.AllowNegative,
	}
}

// Unlimited returns a service that accepts every amount
func Unlimited() *Service {
	return New(config.LimitsConfig{AllowNegative: true})
}

// CheckIncrement returns an error when amount is outside the policy
func (s *Service) CheckIncrement(amount int64) error {
	if amount < 0 && !s.allowNegative {
		return fmt.Errorf("%w: %d", ErrNegativeIncrement, amount)
	}
	if s.maxIncrement > 0 && magnitude(amount) > uint64(s.maxIncrement) {
		return fmt.Errorf("%w: %d > %d", ErrIncrementTooLarge, magnitude(amount), s.maxIncrement)
	}
	return nil
}

// MaxIncrement returns the cap, or 0 when there is none
func (s *Service) MaxIncrement() int64 {
	return s.maxIncrement
}

// magnitude is |n| without overflowing on math.MinInt64
func magnitude(n int64) uint64 {
	if n < 0 {
		return uint64(-(n + 1)) + 1
	}
	return uint64(n)
}
