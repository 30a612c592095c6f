package redis

import goredis "github.com/redis/go-redis/v9"

// Fetch outcomes returned by fetchScript. Any value >= 0 is the
// remaining view count after a successful decrement.
const (
	codeAbsent    int64 = -1
	codeExpired   int64 = -2
	codeExhausted int64 = -3
	codeUnlimited int64 = -4
)

// createScript writes every field of a new paste at once and refuses
// to overwrite an existing key.
//
// KEYS[1] paste key
// ARGV[1] record body, ARGV[2] expires_at ms or "", ARGV[3] views or "",
// ARGV[4] key TTL in ms (0 = persistent)
var createScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1])
if ARGV[2] ~= '' then
  redis.call('HSET', KEYS[1], 'exp', ARGV[2])
end
if ARGV[3] ~= '' then
  redis.call('HSET', KEYS[1], 'views', ARGV[3])
end
if tonumber(ARGV[4]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

// fetchScript evaluates expiry and consumes one view in a single
// server-side step. Dead keys are deleted on the way out.
//
// KEYS[1] paste key
// ARGV[1] now in epoch ms
// Returns {code} or {code, body}.
var fetchScript = goredis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'data', 'exp', 'views')
if not f[1] then
  return {-1}
end
local exp = tonumber(f[2])
if exp and tonumber(ARGV[1]) > exp then
  redis.call('DEL', KEYS[1])
  return {-2}
end
if not f[3] then
  return {-4, f[1]}
end
if tonumber(f[3]) <= 0 then
  redis.call('DEL', KEYS[1])
  return {-3}
end
local left = redis.call('HINCRBY', KEYS[1], 'views', -1)
return {left, f[1]}
`)
