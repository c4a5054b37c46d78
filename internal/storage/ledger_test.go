package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestStoreWithoutPool(t *testing.T) {
	s := NewStore(nil, zerolog.Nop())
	ctx := context.Background()

	if _, err := s.SeenKey(ctx, "abc"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("无连接池时 SeenKey 应返回 ErrNotConfigured, 实际 %v", err)
	}
	if err := s.RecordDelivery(ctx, DeliveryRecord{IdempotencyKey: "abc"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("无连接池时 RecordDelivery 应返回 ErrNotConfigured, 实际 %v", err)
	}
	if _, err := s.ListRecentDeliveries(ctx, 10); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("无连接池时 ListRecentDeliveries 应返回 ErrNotConfigured, 实际 %v", err)
	}
	if _, _, err := s.TryAdvisoryLock(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("无连接池时 TryAdvisoryLock 应返回 ErrNotConfigured, 实际 %v", err)
	}
}

func TestNilStoreClose(t *testing.T) {
	var s *Store
	s.Close() // 不应 panic
}
