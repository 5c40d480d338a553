package cluster

import (
	"strings"

	"kvring/pkg/metrics"
)

// команды, которые не хэшируются и уходят на клиента с индексом 0
var noHash = commandSet(
	"RANDOMKEY", "DBSIZE", "PIPELINE", "EXEC",
	"SELECT", "MOVE", "FLUSHDB", "FLUSHALL",
	"SAVE", "BGSAVE", "LASTSAVE", "SHUTDOWN",
	"INFO", "MONITOR", "SLAVEOF",
)

// команды, которые можно читать не с мастера
var readOnly = commandSet(
	"GET", "MGET", "GETRANGE", "SUBSTR", "STRLEN", "GETBIT", "BITCOUNT", "BITPOS",
	"EXISTS", "TYPE", "TTL", "PTTL", "EXPIRETIME", "PEXPIRETIME", "KEYS", "SCAN", "RANDOMKEY", "DUMP", "OBJECT",
	"HGET", "HMGET", "HGETALL", "HKEYS", "HVALS", "HLEN", "HEXISTS", "HSTRLEN", "HSCAN", "HRANDFIELD",
	"LRANGE", "LLEN", "LINDEX", "LPOS",
	"SMEMBERS", "SISMEMBER", "SMISMEMBER", "SCARD", "SRANDMEMBER", "SINTER", "SUNION", "SDIFF", "SSCAN",
	"ZRANGE", "ZREVRANGE", "ZRANGEBYSCORE", "ZREVRANGEBYSCORE", "ZRANGEBYLEX", "ZREVRANGEBYLEX",
	"ZCARD", "ZSCORE", "ZMSCORE", "ZRANK", "ZREVRANK", "ZCOUNT", "ZLEXCOUNT", "ZSCAN",
	"PFCOUNT", "GEOPOS", "GEODIST", "GEOHASH", "GEORADIUS_RO", "GEORADIUSBYMEMBER_RO",
	"DBSIZE", "INFO", "LASTSAVE", "TIME", "PING", "ECHO",
)

// команды записи; вместе с noHash и readOnly задают допустимые значения метки command
var writes = commandSet(
	"SET", "SETNX", "SETEX", "PSETEX", "MSET", "MSETNX", "GETSET", "GETDEL", "SETRANGE", "SETBIT",
	"DEL", "UNLINK", "EXPIRE", "PEXPIRE", "EXPIREAT", "PEXPIREAT", "PERSIST", "RENAME", "RENAMENX",
	"INCR", "DECR", "INCRBY", "DECRBY", "INCRBYFLOAT", "APPEND",
	"HSET", "HSETNX", "HMSET", "HDEL", "HINCRBY", "HINCRBYFLOAT",
	"LPUSH", "RPUSH", "LPUSHX", "RPUSHX", "LPOP", "RPOP", "LSET", "LREM", "LTRIM", "LINSERT",
	"SADD", "SREM", "SPOP", "SMOVE", "ZADD", "ZREM", "ZINCRBY", "ZPOPMIN", "ZPOPMAX",
	"PFADD", "GEOADD",
)

func commandSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func canonical(name string) string {
	return strings.ToUpper(name)
}

// IsNoHash reports whether name bypasses key hashing.
func IsNoHash(name string) bool {
	_, ok := noHash[canonical(name)]
	return ok
}

// IsReadOnly is the default read-only classifier used for read/write splitting.
func IsReadOnly(name string) bool {
	_, ok := readOnly[canonical(name)]
	return ok
}

// commandLabel returns the canonical name for known commands and
// metrics.OtherCommand for anything else, keeping label cardinality bounded.
func commandLabel(name string) string {
	c := canonical(name)
	if _, ok := noHash[c]; ok {
		return c
	}
	if _, ok := readOnly[c]; ok {
		return c
	}
	if _, ok := writes[c]; ok {
		return c
	}
	return metrics.OtherCommand
}
