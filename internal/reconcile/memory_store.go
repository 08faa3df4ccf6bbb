package reconcile

import (
	"context"
	"sync"

	"candidate-engine-go/internal/types"
)

// MemoryProfileStore 进程内的档案存储
// 用于测试和无持久化依赖的场景，生产路径使用storage包中的MySQL+Redis实现
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]types.CandidateFieldProfile
}

var _ ProfileStore = (*MemoryProfileStore)(nil)

// NewMemoryProfileStore 创建内存档案存储
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[string]types.CandidateFieldProfile),
	}
}

// GetProfile 实现ProfileStore接口，返回档案的深拷贝
func (s *MemoryProfileStore) GetProfile(ctx context.Context, candidateID string) (types.CandidateFieldProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[candidateID]
	if !ok {
		return types.CandidateFieldProfile{}, nil
	}
	return profile.Clone(), nil
}

// SaveProfile 实现ProfileStore接口
func (s *MemoryProfileStore) SaveProfile(ctx context.Context, candidateID string, profile types.CandidateFieldProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[candidateID] = profile.Clone()
	return nil
}
