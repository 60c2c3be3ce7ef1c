package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"rental-system/internal/repositories"
)

// BaseService - общий кэш для сервисов чтения. Ошибки кэша только логируются,
// при любом сбое данные читаются из БД.
type BaseService struct {
	cache  repositories.CacheRepositoryInterface
	logger *zap.Logger
}

func NewBaseService(cache repositories.CacheRepositoryInterface, logger *zap.Logger) *BaseService {
	return &BaseService{cache: cache, logger: logger}
}

// CacheGet получает данные из кэша
func (s *BaseService) CacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repositories.ErrCacheMiss) {
			s.logger.Warn("Ошибка чтения кэша", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(cached, dest); err != nil {
		s.logger.Warn("Повреждённое значение в кэше", zap.String("key", key), zap.Error(err))
		return false
	}
	s.logger.Debug("Данные получены из кэша", zap.String("key", key))
	return true
}

// CacheSet сохраняет данные в кэш
func (s *BaseService) CacheSet(ctx context.Context, key string, data interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	serialized, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("Не удалось сериализовать значение для кэша", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, serialized, ttl); err != nil {
		s.logger.Warn("Ошибка записи в кэш", zap.String("key", key), zap.Error(err))
	}
}

func (s *BaseService) CacheDel(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.Warn("Ошибка сброса кэша", zap.Strings("keys", keys), zap.Error(err))
	}
}
