package handler

import (
	"context"

	"github.com/hitoshi/accountd/internal/auth"
	"github.com/hitoshi/accountd/internal/user"
)

// HealthCheckerFunc は関数をHealthCheckerに適合させるアダプタ。
type HealthCheckerFunc func(ctx context.Context) error

// Check はfを呼び出す。
func (f HealthCheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// --- compile-time interface checks ---

var _ AccountServiceInterface = (*auth.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ HealthChecker = HealthCheckerFunc(nil)
