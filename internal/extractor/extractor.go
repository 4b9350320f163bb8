package extractor

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/partners4saas/engine/internal/models"
)

var (
	ErrPayloadInvalid  = errors.New("webhook payload invalid")
	ErrEventTypeEmpty  = errors.New("webhook event type missing")
	ErrExternalIDEmpty = errors.New("webhook external id missing")
)

// CanonicalEvent 从第三方载荷归一化出的转化事件
type CanonicalEvent struct {
	ExternalID string
	EventType  string
	UserKey    string
	Amount     models.Money
	Currency   string
	OccurredAt *time.Time
	Metadata   models.JSON
}

// Extractor 载荷解析策略
type Extractor interface {
	Name() string
	Extract(body []byte) (*CanonicalEvent, error)
}

// Registry 解析策略注册表，按策略名查找，缺省回退到通用解析
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	fallback   Extractor
}

// NewRegistry 创建注册表并挂载内置策略
func NewRegistry() *Registry {
	r := &Registry{
		extractors: make(map[string]Extractor),
		fallback:   NewGenericExtractor(),
	}
	r.Register(NewGenericExtractor())
	r.Register(NewStripeExtractor())
	r.Register(NewPaddleExtractor())
	return r
}

// Register 注册策略，同名覆盖
func (r *Registry) Register(e Extractor) {
	if e == nil {
		return
	}
	name := normalizeName(e.Name())
	if name == "" {
		return
	}
	r.mu.Lock()
	r.extractors[name] = e
	r.mu.Unlock()
}

// Resolve 按策略名查找，未注册时返回通用解析
func (r *Registry) Resolve(name string) Extractor {
	key := normalizeName(name)
	if key != "" {
		r.mu.RLock()
		e, ok := r.extractors[key]
		r.mu.RUnlock()
		if ok {
			return e
		}
	}
	return r.fallback
}

// Names 列出已注册策略名
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
