// Package ratelimit throttles unauthenticated auth endpoints per client.
package ratelimit

import (
	"context"
	"time"
)

// Policy is a fixed-window budget for one endpoint.
type Policy struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
	// SkipSuccessful refunds the hit when the wrapped handler answers < 400.
	SkipSuccessful bool
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, policy Policy, key string) (Decision, error)
	Release(ctx context.Context, policy Policy, key string) error
}

func LoginPolicy(max int, window time.Duration) Policy {
	return Policy{
		Name:           "login",
		Max:            max,
		Window:         window,
		Message:        "Too many login attempts, please try again after 15 minutes",
		SkipSuccessful: true,
	}
}

func ForgetPasswordPolicy(max int, window time.Duration) Policy {
	return Policy{
		Name:    "forget-password",
		Max:     max,
		Window:  window,
		Message: "Too many forget password attempts, please try again after 15 minutes",
	}
}

func ResetPasswordPolicy(max int, window time.Duration) Policy {
	return Policy{
		Name:    "reset-password",
		Max:     max,
		Window:  window,
		Message: "Too many reset password attempts, please try again after 1 hour",
	}
}
