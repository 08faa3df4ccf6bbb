package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"candidate-engine-go/internal/config"
	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/tracing"
	"candidate-engine-go/internal/types"
)

// ErrNotFound 键不存在时返回，包装底层的redis.Nil
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("candidate-engine-go/storage/redis")

// Redis 包装Redis客户端
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedis 创建Redis客户端连接
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("Redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
	}

	client := redis.NewClient(opt)

	// OpenTelemetry钩子记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回MD5去重记录的过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckAndSetFileMD5 原子地检查并登记原始文件MD5
// 已存在时返回 (true, 首次登记的resumeID)；首次登记返回 (false, "")
func (r *Redis) CheckAndSetFileMD5(ctx context.Context, md5Hex string, resumeID string) (exists bool, existingResumeID string, err error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndSetFileMD5",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.redis.key", constants.KeyFileMD5Set),
		attribute.String("db.redis.member", md5Hex),
	)

	if r.Client == nil {
		err = fmt.Errorf("redis客户端未初始化")
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, "", err
	}

	setKey := constants.KeyFileMD5Set
	mapKey := fmt.Sprintf(constants.KeyFileMD5ToResumeID, md5Hex)

	isMember, err := r.Client.SIsMember(ctx, setKey, md5Hex).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, "", fmt.Errorf("检查MD5是否存在失败: %w", err)
	}
	if isMember {
		existingID, err := r.Client.Get(ctx, mapKey).Result()
		if err != nil && err != redis.Nil {
			return true, "", fmt.Errorf("获取已存在的resumeID失败: %w", err)
		}
		span.SetAttributes(attribute.Bool("already_exists", true))
		span.SetStatus(codes.Ok, "")
		return true, existingID, nil
	}

	pipe := r.Client.Pipeline()
	addCmd := pipe.SAdd(ctx, setKey, md5Hex)
	setNXCmd := pipe.SetNX(ctx, mapKey, resumeID, r.GetMD5ExpireDuration())
	pipe.ExpireNX(ctx, setKey, r.GetMD5ExpireDuration())
	if _, err = pipe.Exec(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, "", fmt.Errorf("执行原子添加MD5操作失败: %w", err)
	}

	if addCmd.Val() > 0 && setNXCmd.Val() {
		span.SetAttributes(attribute.Bool("already_exists", false))
		span.SetStatus(codes.Ok, "")
		return false, "", nil
	}

	// 极小的并发窗口内被其它进程抢先登记，重取归属
	existingID, err := r.Client.Get(ctx, mapKey).Result()
	if err != nil {
		return true, "", fmt.Errorf("获取已存在的resumeID失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("already_exists", true))
	span.SetStatus(codes.Ok, "")
	return true, existingID, nil
}

// RemoveFileMD5 从去重集合移除MD5，处理失败回滚时使用
func (r *Redis) RemoveFileMD5(ctx context.Context, md5Hex string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	pipe := r.Client.Pipeline()
	pipe.SRem(ctx, constants.KeyFileMD5Set, md5Hex)
	pipe.Del(ctx, fmt.Sprintf(constants.KeyFileMD5ToResumeID, md5Hex))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("从集合中移除MD5失败: %w", err)
	}
	return nil
}

// CacheCandidateProfile 将字段档案缓存为JSON
func (r *Redis) CacheCandidateProfile(ctx context.Context, candidateID string, profile types.CandidateFieldProfile) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("序列化档案失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyCandidateProfile, candidateID)
	return r.Client.Set(ctx, key, data, constants.ProfileCacheDuration).Err()
}

// GetCachedCandidateProfile 读取缓存的字段档案，未缓存时返回 (nil, nil)
func (r *Redis) GetCachedCandidateProfile(ctx context.Context, candidateID string) (types.CandidateFieldProfile, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis客户端未初始化")
	}
	key := fmt.Sprintf(constants.KeyCandidateProfile, candidateID)
	data, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取档案缓存失败: %w", err)
	}

	var profile types.CandidateFieldProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("解析档案缓存失败: %w", err)
	}
	return profile, nil
}

// InvalidateCandidateProfile 删除字段档案缓存
func (r *Redis) InvalidateCandidateProfile(ctx context.Context, candidateID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	key := fmt.Sprintf(constants.KeyCandidateProfile, candidateID)
	return r.Client.Del(ctx, key).Err()
}

// AcquireCandidateLock 获取候选人级别的处理锁，返回锁持有者标识，未获取到返回空串
func (r *Redis) AcquireCandidateLock(ctx context.Context, candidateID string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}
	lockKey := fmt.Sprintf(constants.KeyCandidateLock, candidateID)
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// ReleaseCandidateLock 释放候选人处理锁，Lua脚本保证只释放自己持有的锁
func (r *Redis) ReleaseCandidateLock(ctx context.Context, candidateID string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	lockKey := fmt.Sprintf(constants.KeyCandidateLock, candidateID)
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}
	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}
	return false, nil
}
