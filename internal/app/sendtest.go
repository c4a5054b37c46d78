package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"curtailment-alerts/internal/portal"
	"curtailment-alerts/internal/service"
)

// SendTest 将本地 artifact 推过完整投递链路，使用 BypassUnique 幂等 key,
// 因此每次调用都会真实投递一次。仅用于验证 webhook 链路。
func (a *App) SendTest(ctx context.Context, path string) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("notify.webhook_url 未配置")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	cfg := *a.Config
	cfg.Pipeline.DedupeBypass = true

	svc := service.New(&cfg, nil, nil, nil, notifier, a.Logger)

	art := portal.Artifact{FileName: filepath.Base(path), Bytes: raw}
	return svc.Deliver(ctx, time.Now().UTC(), art)
}
