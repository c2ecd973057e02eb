package renamer

import (
	"context"
	"fmt"
	"sync"

	"robotrenamer/internal/orchestrator"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// UnitResolver 将组织单元名称解析为 id，结果在一次运行内缓存且不失效。
type UnitResolver struct {
	api    orchestrator.API
	mode   orchestrator.MatchMode
	logger *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]int64
}

// NewUnitResolver 创建解析器，mode 为空时按 exact 匹配。
func NewUnitResolver(api orchestrator.API, mode orchestrator.MatchMode, logger *zap.Logger) *UnitResolver {
	if mode == "" {
		mode = orchestrator.MatchExact
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnitResolver{
		api:    api,
		mode:   mode,
		logger: logger,
		cache:  make(map[string]int64),
	}
}

// Resolve 返回组织单元 id，同名并发查询只会发出一次请求。
func (r *UnitResolver) Resolve(ctx context.Context, name string) (int64, error) {
	if id, ok := r.cached(name); ok {
		return id, nil
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		if id, ok := r.cached(name); ok {
			return id, nil
		}
		units, err := r.api.QueryOrganizationUnits(ctx, name, r.mode)
		if err != nil {
			return int64(0), fmt.Errorf("query organization unit %q: %w", name, err)
		}
		if len(units) != 1 {
			return int64(0), fmt.Errorf("%w: expected exactly one unit named %q (%s match), found %d",
				ErrAmbiguousUnit, name, r.mode, len(units))
		}
		id := units[0].ID
		r.mu.Lock()
		r.cache[name] = id
		r.mu.Unlock()
		r.logger.Debug("organization unit resolved", zap.String("unit", name), zap.Int64("unit_id", id))
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (r *UnitResolver) cached(name string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.cache[name]
	return id, ok
}
