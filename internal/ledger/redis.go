package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a ledger backed by one redis key per SlotKey. Each operation
// runs as a single Lua script, so claim-check and claim-write are
// indivisible server-side. Claims carry no TTL.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func claimKey(key SlotKey) string {
	return "claim:slot:" + key.String()
}

// Claim values are "appointmentID|tenantID|createdAtUnix". Ownership
// checks in the scripts compare the "appointmentID|" prefix.
func encodeClaim(ref Ref, at time.Time) string {
	return fmt.Sprintf("%s|%s|%d", ref.AppointmentID, ref.TenantID, at.Unix())
}

func decodeClaim(key SlotKey, raw string) (*SlotClaim, error) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed slot claim %q", raw)
	}
	apptID, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed slot claim %q: %w", raw, err)
	}
	tenantID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed slot claim %q: %w", raw, err)
	}
	sec, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed slot claim %q: %w", raw, err)
	}

	return &SlotClaim{
		Key:           key,
		AppointmentID: apptID,
		TenantID:      tenantID,
		CreatedAt:     time.Unix(sec, 0).UTC(),
	}, nil
}

var tryClaimScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

var moveClaimScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
local cur = redis.call("GET", KEYS[1])
if cur and string.sub(cur, 1, string.len(ARGV[1])) == ARGV[1] then
  redis.call("DEL", KEYS[1])
end
redis.call("SET", KEYS[2], ARGV[2])
return 1
`)

var releaseScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur and string.sub(cur, 1, string.len(ARGV[1])) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *Redis) TryClaim(ctx context.Context, key SlotKey, ref Ref) error {
	val := encodeClaim(ref, time.Now())
	n, err := tryClaimScript.Run(ctx, r.client, []string{claimKey(key)}, val).Int()
	if err != nil {
		return fmt.Errorf("try claim %s: %w", key, err)
	}
	if n == 0 {
		return ErrSlotTaken
	}
	return nil
}

func (r *Redis) MoveClaim(ctx context.Context, oldKey, newKey SlotKey, ref Ref) error {
	owner := ref.AppointmentID.String() + "|"
	val := encodeClaim(ref, time.Now())
	n, err := moveClaimScript.Run(ctx, r.client,
		[]string{claimKey(oldKey), claimKey(newKey)}, owner, val).Int()
	if err != nil {
		return fmt.Errorf("move claim %s -> %s: %w", oldKey, newKey, err)
	}
	if n == 0 {
		return ErrSlotTaken
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, key SlotKey, ref Ref) error {
	owner := ref.AppointmentID.String() + "|"
	_, err := releaseScript.Run(ctx, r.client, []string{claimKey(key)}, owner).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release claim %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key SlotKey) (*SlotClaim, error) {
	raw, err := r.client.Get(ctx, claimKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim %s: %w", key, err)
	}
	return decodeClaim(key, raw)
}
