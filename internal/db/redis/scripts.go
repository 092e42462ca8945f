package redis

import "github.com/redis/rueidis"

// upsertScript writes a document and diffs its tags.
//
// KEYS: doc, doctags, tenant zset, index zset, vocabulary
// ARGV: id, tenant, index, data, now, tag key prefix, tag count, tags...
//
// Returns {"CONFLICT", owner tenant, owner index} when the id belongs to
// another scope, otherwise {"OK", created_at, updated_at}.
var upsertScript = rueidis.NewLuaScript(`
local owner = redis.call('HMGET', KEYS[1], 'tenant', 'index', 'created_at')
local created = ARGV[5]
if owner[1] then
  if owner[1] ~= ARGV[2] or owner[2] ~= ARGV[3] then
    return {'CONFLICT', owner[1], owner[2]}
  end
  created = owner[3]
end

redis.call('HSET', KEYS[1],
  'tenant', ARGV[2], 'index', ARGV[3], 'data', ARGV[4],
  'created_at', created, 'updated_at', ARGV[5])
redis.call('ZADD', KEYS[3], ARGV[5], ARGV[1])
redis.call('ZADD', KEYS[4], ARGV[5], ARGV[1])

local n = tonumber(ARGV[7])
local wanted = {}
for i = 1, n do wanted[ARGV[7 + i]] = true end

for _, t in ipairs(redis.call('SMEMBERS', KEYS[2])) do
  if not wanted[t] then
    local tk = ARGV[6] .. t
    redis.call('SREM', KEYS[2], t)
    redis.call('SREM', tk, ARGV[1])
    if redis.call('SCARD', tk) == 0 then
      redis.call('DEL', tk)
      redis.call('SREM', KEYS[5], t)
    end
  end
end
for i = 1, n do
  local t = ARGV[7 + i]
  redis.call('SADD', KEYS[2], t)
  redis.call('SADD', ARGV[6] .. t, ARGV[1])
  redis.call('SADD', KEYS[5], t)
end

return {'OK', created, ARGV[5]}
`)

// deleteScript removes a document, its ordering entries and its tag links.
//
// KEYS: doc, doctags, vocabulary
// ARGV: id, tenant key prefix, tag key prefix
//
// Returns 1 when a document was removed, 0 when it did not exist.
var deleteScript = rueidis.NewLuaScript(`
local owner = redis.call('HMGET', KEYS[1], 'tenant', 'index')
if not owner[1] then
  return 0
end

local tenant = ARGV[2] .. #owner[1] .. ':' .. owner[1]
redis.call('ZREM', tenant, ARGV[1])
redis.call('ZREM', tenant .. ':index:' .. owner[2], ARGV[1])

for _, t in ipairs(redis.call('SMEMBERS', KEYS[2])) do
  local tk = ARGV[3] .. t
  redis.call('SREM', tk, ARGV[1])
  if redis.call('SCARD', tk) == 0 then
    redis.call('DEL', tk)
    redis.call('SREM', KEYS[3], t)
  end
end

redis.call('DEL', KEYS[1], KEYS[2])
return 1
`)
