package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/reconcile"
	"candidate-engine-go/internal/types"
)

// CachedProfileStore MySQL持久化加Redis缓存的字段档案存储
// MySQL是权威来源，缓存未命中回源后写缓存，写入时同步刷新缓存
type CachedProfileStore struct {
	mysql *MySQL
	redis *Redis
	log   zerolog.Logger
}

var _ reconcile.ProfileStore = (*CachedProfileStore)(nil)

// NewCachedProfileStore 创建带缓存的档案存储，redis可为nil表示不启用缓存
func NewCachedProfileStore(mysql *MySQL, redis *Redis) (*CachedProfileStore, error) {
	if mysql == nil {
		return nil, fmt.Errorf("MySQL实例不能为空")
	}
	return &CachedProfileStore{
		mysql: mysql,
		redis: redis,
		log:   logger.Component("profile_store"),
	}, nil
}

// GetProfile 读取字段档案，不存在时返回空档案
func (s *CachedProfileStore) GetProfile(ctx context.Context, candidateID string) (types.CandidateFieldProfile, error) {
	if s.redis != nil {
		cached, err := s.redis.GetCachedCandidateProfile(ctx, candidateID)
		if err != nil {
			// 缓存故障只降级，不阻断读取
			s.log.Warn().Err(err).Str("candidate_id", candidateID).Msg("读取档案缓存失败，回源MySQL")
		} else if cached != nil {
			return cached, nil
		}
	}

	profile, err := s.mysql.GetCandidateProfile(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = make(types.CandidateFieldProfile)
	}

	if s.redis != nil && len(profile) > 0 {
		if err := s.redis.CacheCandidateProfile(ctx, candidateID, profile); err != nil {
			s.log.Warn().Err(err).Str("candidate_id", candidateID).Msg("写档案缓存失败")
		}
	}
	return profile, nil
}

// SaveProfile 将档案写入MySQL并刷新缓存
func (s *CachedProfileStore) SaveProfile(ctx context.Context, candidateID string, profile types.CandidateFieldProfile) error {
	overall := reconcile.OverallConfidence(profile)
	if err := s.mysql.SaveCandidateProfile(ctx, candidateID, profile, overall); err != nil {
		return err
	}

	if s.redis != nil {
		if err := s.redis.CacheCandidateProfile(ctx, candidateID, profile); err != nil {
			s.log.Warn().Err(err).Str("candidate_id", candidateID).Msg("刷新档案缓存失败")
		}
	}
	return nil
}
