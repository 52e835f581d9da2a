package redis

import (
	"context"
	"time"

	"companion-billing/internal/domain/ports/adapter"
)

var _ adapter.CodeReserver = (*CodeReserver)(nil)

// CodeReserver keeps issued payment codes out of circulation for their
// window plus the reuse cooldown.
type CodeReserver struct {
	client RedisClient
}

func NewCodeReserver(client RedisClient) *CodeReserver {
	return &CodeReserver{client: client}
}

func (r *CodeReserver) Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, PaymentCodeKey(code), time.Now().Unix(), ttl)
}

func PaymentCodeKey(code string) string {
	return "payment_code:" + code
}
