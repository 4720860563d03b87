// Package redis 装饰一个权威 MessageStore，把最近持久化的报文和两个序号
// 计数器缓存到 Redis，让补发应答的热路径（spec §4.2 的常见情形：对端索要
// 最近几条报文）不必每次都打到 MySQL。缓存未命中总是穿透到底层存储，
// 从不凭空编造数据，保证 MessageStore 的持久性语义不被破坏。
package redis

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/fixsession/internal/fixsession"
)

// CachedMessageStore 叠加在 backing（权威存储，通常是 mysql.GormMessageStore）
// 之上：写路径总是先写穿 backing，Set/SetXxx 随后回填缓存，IncrXxx 则删除
// 缓存中的计数器，下次读取时再从 backing 回填；读路径先查缓存，未命中再查 backing。
type CachedMessageStore struct {
	backing fixsession.MessageStore
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	hotSize int

	// epoch namespaces msgKey so a Reset can't leave stale pre-reset
	// bytes readable under the post-reset (now-reused) sequence range.
	epoch atomic.Int64
}

// NewCachedMessageStore wraps backing with a Redis hot-cache keyed under
// prefix (typically the session ID). Every message passed to Set is
// cached until ttl expires; hotSize only bounds the length of a Get range
// that is served from the cache.
func NewCachedMessageStore(backing fixsession.MessageStore, client redis.UniversalClient, sessionKey string, hotSize int, ttl time.Duration) *CachedMessageStore {
	if hotSize <= 0 {
		hotSize = 100
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedMessageStore{
		backing: backing,
		client:  client,
		prefix:  "fixsession:" + sessionKey + ":",
		ttl:     ttl,
		hotSize: hotSize,
	}
}

func (c *CachedMessageStore) senderKey() string { return c.prefix + "next_sender" }
func (c *CachedMessageStore) targetKey() string { return c.prefix + "next_target" }
func (c *CachedMessageStore) msgKey(seq int) string {
	epoch := c.epoch.Load()
	return c.prefix + "msg:" + strconv.FormatInt(epoch, 10) + ":" + strconv.Itoa(seq)
}

func (c *CachedMessageStore) GetNextSenderMsgSeqNum(ctx context.Context) (int, error) {
	return c.getCounter(ctx, c.senderKey(), c.backing.GetNextSenderMsgSeqNum)
}

func (c *CachedMessageStore) SetNextSenderMsgSeqNum(ctx context.Context, seq int) error {
	if err := c.backing.SetNextSenderMsgSeqNum(ctx, seq); err != nil {
		return err
	}
	c.client.Set(ctx, c.senderKey(), seq, c.ttl)
	return nil
}

func (c *CachedMessageStore) IncrNextSenderMsgSeqNum(ctx context.Context) error {
	if err := c.backing.IncrNextSenderMsgSeqNum(ctx); err != nil {
		return err
	}
	c.client.Del(ctx, c.senderKey())
	return nil
}

func (c *CachedMessageStore) GetNextTargetMsgSeqNum(ctx context.Context) (int, error) {
	return c.getCounter(ctx, c.targetKey(), c.backing.GetNextTargetMsgSeqNum)
}

func (c *CachedMessageStore) SetNextTargetMsgSeqNum(ctx context.Context, seq int) error {
	if err := c.backing.SetNextTargetMsgSeqNum(ctx, seq); err != nil {
		return err
	}
	c.client.Set(ctx, c.targetKey(), seq, c.ttl)
	return nil
}

func (c *CachedMessageStore) IncrNextTargetMsgSeqNum(ctx context.Context) error {
	if err := c.backing.IncrNextTargetMsgSeqNum(ctx); err != nil {
		return err
	}
	c.client.Del(ctx, c.targetKey())
	return nil
}

func (c *CachedMessageStore) getCounter(ctx context.Context, key string, fallback func(context.Context) (int, error)) (int, error) {
	val, err := c.client.Get(ctx, key).Int()
	if err == nil {
		return val, nil
	}
	if err != redis.Nil {
		return fallback(ctx)
	}
	n, err := fallback(ctx)
	if err != nil {
		return 0, err
	}
	c.client.Set(ctx, key, n, c.ttl)
	return n, nil
}

// Get answers a resend range entirely from the hot cache when every seq
// in [begin, end] is present (the common case: a peer asking to resend
// the last few messages right after a gap). Any miss falls back to the
// full range from backing rather than returning a partial answer.
func (c *CachedMessageStore) Get(ctx context.Context, begin, end int) ([]fixsession.StoredMessage, error) {
	if end <= 0 || end < begin || end-begin+1 > c.hotSize {
		return c.backing.Get(ctx, begin, end)
	}

	out := make([]fixsession.StoredMessage, 0, end-begin+1)
	for seq := begin; seq <= end; seq++ {
		raw, err := c.client.Get(ctx, c.msgKey(seq)).Bytes()
		if err != nil {
			return c.backing.Get(ctx, begin, end)
		}
		out = append(out, fixsession.StoredMessage{Seq: seq, Raw: raw})
	}
	return out, nil
}

func (c *CachedMessageStore) Set(ctx context.Context, seq int, raw []byte) error {
	if err := c.backing.Set(ctx, seq, raw); err != nil {
		return err
	}
	c.client.Set(ctx, c.msgKey(seq), raw, c.ttl)
	return nil
}

func (c *CachedMessageStore) Refresh(ctx context.Context) error {
	return c.backing.Refresh(ctx)
}

func (c *CachedMessageStore) Reset(ctx context.Context) error {
	if err := c.backing.Reset(ctx); err != nil {
		return err
	}
	c.client.Del(ctx, c.senderKey(), c.targetKey())
	c.epoch.Add(1)
	return nil
}

func (c *CachedMessageStore) CreationTime(ctx context.Context) (time.Time, error) {
	return c.backing.CreationTime(ctx)
}

func (c *CachedMessageStore) Close() error {
	return c.backing.Close()
}

var _ fixsession.MessageStore = (*CachedMessageStore)(nil)
