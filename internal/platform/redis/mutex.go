package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"jagga/pkg/sentinel"
)

// Mutex is a best-effort lease used to serialize decide-stage work on a
// single request or parcel across process instances. The lifecycle service
// holds it across the status write and ledger reconciliation so two decides
// on the same entity cannot interleave their cross-system writes.
//
// A nil *Mutex (Redis not configured) is a no-op: single-instance
// deployments fall back to uncontended execution.
type Mutex struct {
	client *Client
	ttl    time.Duration
}

// NewMutex builds a lease helper over the shared client. client may be nil.
func NewMutex(client *Client, ttl time.Duration) *Mutex {
	if client == nil {
		return nil
	}
	return &Mutex{client: client, ttl: ttl}
}

// Acquire takes the lease for key, or returns sentinel.ErrConflict if
// another holder has it. The returned release func is safe to call once.
func (m *Mutex) Acquire(ctx context.Context, key string) (func(), error) {
	if m == nil {
		return func() {}, nil
	}

	ok, err := m.client.SetNX(ctx, "lease:"+key, "1", m.ttl).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if !ok {
		return nil, sentinel.ErrConflict
	}
	return func() {
		// Release outlives the request context deadline on purpose.
		m.client.Del(context.Background(), "lease:"+key)
	}, nil
}
