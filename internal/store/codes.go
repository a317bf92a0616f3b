package store

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// CodeKind separates the login OTP namespace from any future kinds.
// Activation codes live on the account record and never pass through
// this store.
type CodeKind string

// KindLogin is the 6 digit OTP gating password sign in.
const KindLogin CodeKind = "login"

const codeKeyPrefix = "loadxpress:codes:"

// consumeScript atomically compares and deletes a code so two racing
// verification attempts cannot both succeed. Returns 1 when the code
// matched and was deleted, 0 otherwise.
var consumeScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Codes stores short lived one time codes in Redis. Expiry is handled
// by the server's key TTL, so a lookup can never observe a stale code.
type Codes struct {
	rdb *redis.Client
}

// NewCodesStore builds a code store from an existing redis client.
func NewCodesStore(rdb *redis.Client) *Codes {
	return &Codes{rdb: rdb}
}

func codeKey(kind CodeKind, email string) string {
	return codeKeyPrefix + string(kind) + ":" + email
}

// Put stores a code under (kind, email) with the given TTL,
// replacing any previous code for the same pair.
func (c *Codes) Put(ctx context.Context, kind CodeKind, email, code string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, codeKey(kind, email), code, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store one time code")
	}
	return nil
}

// Consume verifies and deletes a code in one step. A false result
// covers never-issued, expired-and-evicted and already-consumed alike;
// callers must not distinguish them.
func (c *Codes) Consume(ctx context.Context, kind CodeKind, email, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, c.rdb, []string{codeKey(kind, email)}, code).Int()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify one time code")
	}
	return n == 1, nil
}

// Delete drops any outstanding code for (kind, email).
func (c *Codes) Delete(ctx context.Context, kind CodeKind, email string) error {
	if err := c.rdb.Del(ctx, codeKey(kind, email)).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete one time code")
	}
	return nil
}
