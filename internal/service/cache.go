// cache.go — LRU-кэш страниц уведомлений с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/clientportal/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cp_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш страниц уведомлений.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cp_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша страниц уведомлений.",
	})
	cacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cp_cache_invalidations_total",
		Help: "Общее количество инвалидаций кэша по префиксу пользователя.",
	})
)

// CacheService — LRU-кэш страниц уведомлений с автоматическим TTL.
// Каждый экземпляр сервиса имеет собственный in-memory кэш:
// TTL ограничивает расхождение между экземплярами.
type CacheService struct {
	cache *expirable.LRU[string, *model.NotificationPage]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.NotificationPage](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// PageKey — ключ кэша для страницы уведомлений пользователя.
func PageKey(userID string, page, limit int) string {
	return fmt.Sprintf("notifications_%s_page_%d_limit_%d", userID, page, limit)
}

// userPrefix — общий префикс всех ключей пользователя.
func userPrefix(userID string) string {
	return fmt.Sprintf("notifications_%s_", userID)
}

// Get возвращает страницу из кэша.
// Возвращает (страница, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(key string) (*model.NotificationPage, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет страницу в кэше.
func (c *CacheService) Set(key string, page *model.NotificationPage) {
	c.cache.Add(key, page)
}

// InvalidateUser удаляет все закэшированные страницы пользователя.
// Вызывается при любой записи, затрагивающей его выборку:
// номера страниц сдвигаются, поэтому точечная инвалидация невозможна.
func (c *CacheService) InvalidateUser(userID string) {
	prefix := userPrefix(userID)
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
	cacheInvalidationsTotal.Inc()
}

// Len возвращает текущее количество записей в кэше.
func (c *CacheService) Len() int {
	return c.cache.Len()
}
