package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

const defaultKeyPrefix = "checkin"

// maxScriptAttempts bounds the retries when a binding moves between the
// read that names a script's keys and the script itself.
const maxScriptAttempts = 5

var errBindingMoved = errors.New("binding changed during update")

// bindScript applies the bind rules in one round trip. Every key it touches
// is declared, so it runs on Redis Cluster as long as the keys share a slot.
// KEYS: serial hash, entity key, serial index, released serial hash (or the
// serial hash again when the entity has no tag).
// ARGV: serial, entity id, bound_at, serial the entity held when KEYS were
// built, empty for none.
// Returns {status, entity_or_bound_at, released_serial}.
var bindScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'entity_id')
if current then
	if current == ARGV[2] then
		return {'bound', redis.call('HGET', KEYS[1], 'bound_at'), ''}
	end
	return {'conflict', current, ''}
end
local released = redis.call('GET', KEYS[2]) or ''
if released ~= ARGV[4] then
	return {'moved', '', ''}
end
if released ~= '' then
	redis.call('DEL', KEYS[4])
	redis.call('SREM', KEYS[3], released)
end
redis.call('HSET', KEYS[1], 'entity_id', ARGV[2], 'bound_at', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[1])
return {'ok', ARGV[3], released}
`)

// unbindScript removes a serial and, when it still points back, the
// entity's reverse key.
// KEYS: serial hash, serial index, entity key of the expected owner.
// ARGV: serial, expected owner.
var unbindScript = redis.NewScript(`
local entity = redis.call('HGET', KEYS[1], 'entity_id')
if not entity then
	return {'none'}
end
if entity ~= ARGV[2] then
	return {'moved'}
end
local boundAt = redis.call('HGET', KEYS[1], 'bound_at')
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
if redis.call('GET', KEYS[3]) == ARGV[1] then
	redis.call('DEL', KEYS[3])
end
return {'ok', entity, boundAt}
`)

// RedisStore shares bindings between check-in stations through Redis.
// Each mutation is a single Lua script, so it is atomic on the server. The
// keys a script needs are read first; if they move before the script runs,
// the script refuses and the store retries.
type RedisStore struct {
	client *redis.Client

	serialKeyPrefix string
	entityKeyPrefix string
	serialIndexKey  string
}

// RedisOption configures a RedisStore instance.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces every key, so several events can share one Redis.
// The prefix becomes a hash tag, keeping an event's keys in one cluster slot.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.setPrefix(prefix)
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	s.setPrefix(defaultKeyPrefix)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) setPrefix(prefix string) {
	tag := "{" + prefix + "}"
	s.serialKeyPrefix = tag + ":tag:serial:"
	s.entityKeyPrefix = tag + ":tag:entity:"
	s.serialIndexKey = tag + ":tag:serials"
}

func (s *RedisStore) serialKey(serial id.TagSerial) string {
	return s.serialKeyPrefix + string(serial)
}

func (s *RedisStore) entityKey(entityID id.EntityID) string {
	return s.entityKeyPrefix + string(entityID)
}

func (s *RedisStore) FindBySerial(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	vals, err := s.client.HGetAll(ctx, s.serialKey(serial)).Result()
	if err != nil {
		return nil, fmt.Errorf("find binding by serial: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("tag %s: %w", serial, sentinel.ErrNotFound)
	}
	return bindingFromHash(serial, vals)
}

func (s *RedisStore) FindByEntity(ctx context.Context, entityID id.EntityID) (*models.TagBinding, error) {
	serial, err := s.client.Get(ctx, s.entityKey(entityID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("binding for %s: %w", entityID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find binding by entity: %w", err)
	}
	return s.FindBySerial(ctx, id.TagSerial(serial))
}

func (s *RedisStore) Bind(ctx context.Context, binding models.TagBinding) (models.BindResult, error) {
	for range maxScriptAttempts {
		result, err := s.bindOnce(ctx, binding)
		if errors.Is(err, errBindingMoved) {
			continue
		}
		return result, err
	}
	return models.BindResult{}, fmt.Errorf("bind %s: %w", binding.Serial, errBindingMoved)
}

func (s *RedisStore) bindOnce(ctx context.Context, binding models.TagBinding) (models.BindResult, error) {
	held, err := s.client.Get(ctx, s.entityKey(binding.EntityID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return models.BindResult{}, fmt.Errorf("read entity tag: %w", err)
	}
	releasedKey := s.serialKey(binding.Serial)
	if held != "" {
		releasedKey = s.serialKey(id.TagSerial(held))
	}

	keys := []string{
		s.serialKey(binding.Serial),
		s.entityKey(binding.EntityID),
		s.serialIndexKey,
		releasedKey,
	}
	out, err := bindScript.Run(ctx, s.client, keys,
		string(binding.Serial),
		string(binding.EntityID),
		binding.BoundAt.UTC().Format(time.RFC3339Nano),
		held,
	).StringSlice()
	if err != nil {
		return models.BindResult{}, fmt.Errorf("bind script: %w", err)
	}
	if len(out) != 3 {
		return models.BindResult{}, fmt.Errorf("bind script: unexpected reply %v", out)
	}

	switch out[0] {
	case "moved":
		return models.BindResult{}, errBindingMoved
	case "conflict":
		return models.BindResult{}, &models.BindConflictError{Serial: binding.Serial, ExistingEntityID: id.EntityID(out[1])}
	case "bound":
		boundAt, err := time.Parse(time.RFC3339Nano, out[1])
		if err != nil {
			return models.BindResult{}, fmt.Errorf("parse bound_at: %w", err)
		}
		existing := binding
		existing.BoundAt = boundAt
		return models.BindResult{Binding: existing, AlreadyBound: true}, nil
	}

	result := models.BindResult{Binding: binding}
	if out[2] != "" {
		released := id.TagSerial(out[2])
		result.ReleasedSerial = &released
	}
	return result, nil
}

func (s *RedisStore) Unbind(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	for range maxScriptAttempts {
		removed, err := s.unbindOnce(ctx, serial)
		if errors.Is(err, errBindingMoved) {
			continue
		}
		return removed, err
	}
	return nil, fmt.Errorf("unbind %s: %w", serial, errBindingMoved)
}

func (s *RedisStore) unbindOnce(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	owner, err := s.client.HGet(ctx, s.serialKey(serial), "entity_id").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tag owner: %w", err)
	}

	out, err := unbindScript.Run(ctx, s.client,
		[]string{s.serialKey(serial), s.serialIndexKey, s.entityKey(id.EntityID(owner))},
		string(serial), owner,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("unbind script: %w", err)
	}
	switch {
	case len(out) == 1 && out[0] == "none":
		return nil, nil
	case len(out) == 1 && out[0] == "moved":
		return nil, errBindingMoved
	case len(out) != 3:
		return nil, fmt.Errorf("unbind script: unexpected reply %v", out)
	}
	return bindingFromHash(serial, map[string]string{"entity_id": out[1], "bound_at": out[2]})
}

func (s *RedisStore) List(ctx context.Context) ([]models.TagBinding, error) {
	serials, err := s.client.SMembers(ctx, s.serialIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list serials: %w", err)
	}
	sort.Strings(serials)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(serials))
	for i, serial := range serials {
		cmds[i] = pipe.HGetAll(ctx, s.serialKey(id.TagSerial(serial)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list bindings: %w", err)
	}

	out := make([]models.TagBinding, 0, len(serials))
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		b, err := bindingFromHash(id.TagSerial(serials[i]), vals)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

// Import checks the batch against current state, then binds each entry.
// Concurrent writers between the check and the writes surface as a conflict
// on the affected entry.
func (s *RedisStore) Import(ctx context.Context, bindings []models.TagBinding) error {
	for _, b := range bindings {
		existing, err := s.FindByEntity(ctx, b.EntityID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if existing != nil && existing.Serial != b.Serial {
			return fmt.Errorf("entity %s already has a tag: %w", b.EntityID, sentinel.ErrConflict)
		}
		owner, err := s.FindBySerial(ctx, b.Serial)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if owner != nil && owner.EntityID != b.EntityID {
			return &models.BindConflictError{Serial: b.Serial, ExistingEntityID: owner.EntityID}
		}
	}
	for _, b := range bindings {
		if _, err := s.Bind(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func bindingFromHash(serial id.TagSerial, vals map[string]string) (*models.TagBinding, error) {
	boundAt, err := time.Parse(time.RFC3339Nano, vals["bound_at"])
	if err != nil {
		return nil, fmt.Errorf("parse bound_at: %w", err)
	}
	return &models.TagBinding{
		Serial:   serial,
		EntityID: id.EntityID(vals["entity_id"]),
		BoundAt:  boundAt,
	}, nil
}
