package drafts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainform"
)

func sampleState(t *testing.T) trainform.State {
	t.Helper()
	f := trainform.New(nil)
	if err := f.SelectModelType(0, "random_forest"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.SelectFile("d.csv", strings.NewReader("a,b\n1,2")); err != nil {
		t.Fatalf("file: %v", err)
	}
	f.SetTargetColumns([]string{"b"})
	return f.Snapshot()
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	session := uuid.NewString()

	if _, err := s.Load(ctx, session); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load missing: err=%v", err)
	}
	want := sampleState(t)
	if err := s.Save(ctx, session, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, session)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Blocks) != 1 || got.Blocks[0].ModelType != "random_forest" {
		t.Fatalf("blocks=%+v", got.Blocks)
	}
	if got.Blocks[0].Hyperparameters["n_estimators"] != 100.0 {
		t.Fatalf("hyperparameters=%v", got.Blocks[0].Hyperparameters)
	}
	if got.File == nil || string(got.File.Content) != "a,b\n1,2" || got.Columns[1].Value != "b" {
		t.Fatalf("file state=%+v", got)
	}
	if err := s.Delete(ctx, session); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(ctx, session); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load after delete: err=%v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory(time.Hour))
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	s := NewMemory(time.Hour)
	st := sampleState(t)
	_ = s.Save(context.Background(), "x", st)
	st.Blocks[0].Hyperparameters["n_estimators"] = 1.0
	got, _ := s.Load(context.Background(), "x")
	if got.Blocks[0].Hyperparameters["n_estimators"] != 100.0 {
		t.Fatalf("stored draft aliased caller state")
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemory(time.Minute).(*memoryStore)
	now := time.Now()
	s.now = func() time.Time { return now }
	_ = s.Save(context.Background(), "x", sampleState(t))
	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := s.Load(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestMemoryStoreSweepsAbandonedSessions(t *testing.T) {
	s := NewMemory(time.Minute).(*memoryStore)
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }
	st := sampleState(t)
	for i := 0; i < 1000; i++ {
		_ = s.Save(ctx, fmt.Sprintf("abandoned-%d", i), st)
	}
	if len(s.m) != 1000 {
		t.Fatalf("entries=%d", len(s.m))
	}

	now = now.Add(48 * time.Hour)
	_ = s.Save(ctx, "live", st)
	if len(s.m) != 1 {
		t.Fatalf("entries=%d want 1 after sweep", len(s.m))
	}
	if _, err := s.Load(ctx, "live"); err != nil {
		t.Fatalf("live session: %v", err)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(context.Background(), logger.Nop(), Options{Mode: "etcd"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis draft store tests")
	}
	s, err := New(context.Background(), logger.Nop(), Options{Mode: ModeRedis, RedisAddr: addr, KeyPrefix: "mlcompare:test:", TTL: time.Minute})
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}
