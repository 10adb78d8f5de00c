package drafts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/platform/apierr"
	"github.com/yungbote/mlcompare/internal/trainform"
)

type blockingSubmitter struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func (b *blockingSubmitter) SubmitTraining(ctx context.Context, req client.TrainingRequest) (*client.TrainingResponse, error) {
	close(b.started)
	<-b.release
	if b.err != nil {
		return nil, b.err
	}
	return &client.TrainingResponse{Runs: []client.TrainingRun{{ID: "1"}}}, nil
}

func readySession(t *testing.T, s *Sessions, id string) {
	t.Helper()
	_, err := s.Update(context.Background(), id, func(f *trainform.Form) error {
		if err := f.SelectModelType(0, "knn"); err != nil {
			return err
		}
		if err := f.SelectFile("d.csv", strings.NewReader("x,y\n1,2")); err != nil {
			return err
		}
		f.SetTargetColumns([]string{"y"})
		return nil
	})
	if err != nil {
		t.Fatalf("prepare session: %v", err)
	}
}

func TestSessionsViewFreshForm(t *testing.T) {
	s := NewSessions(NewMemory(time.Hour), nil)
	st, err := s.View(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(st.Blocks) != 1 || st.File != nil {
		t.Fatalf("state=%+v", st)
	}
	if _, err := s.View(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty session")
	}
}

func TestSessionsUpdateDoesNotSaveOnError(t *testing.T) {
	s := NewSessions(NewMemory(time.Hour), nil)
	ctx := context.Background()
	if _, err := s.Update(ctx, "a", func(f *trainform.Form) error {
		f.AddBlock()
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	_, err := s.Update(ctx, "a", func(f *trainform.Form) error {
		f.AddBlock()
		return f.RemoveBlock(10)
	})
	if !errors.Is(err, trainform.ErrBlockIndex) {
		t.Fatalf("err=%v", err)
	}
	st, _ := s.View(ctx, "a")
	if len(st.Blocks) != 2 {
		t.Fatalf("blocks=%d, failed update must not be saved", len(st.Blocks))
	}
}

func TestSessionsConcurrentUpdates(t *testing.T) {
	s := NewSessions(NewMemory(time.Hour), nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, "shared", func(f *trainform.Form) error {
				f.AddBlock()
				return nil
			})
		}()
	}
	wg.Wait()
	st, _ := s.View(ctx, "shared")
	if len(st.Blocks) != 21 {
		t.Fatalf("blocks=%d want 21", len(st.Blocks))
	}
	if len(s.locks) != 0 {
		t.Fatalf("lock map leaked %d entries", len(s.locks))
	}
}

func TestSessionsSubmitLoadingLifecycle(t *testing.T) {
	s := NewSessions(NewMemory(time.Hour), nil)
	ctx := context.Background()
	readySession(t, s, "sub")

	sub := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{})}
	type result struct {
		resp *client.TrainingResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		_, resp, err := s.Submit(ctx, "sub", sub)
		done <- result{resp, err}
	}()

	<-sub.started
	st, _ := s.View(ctx, "sub")
	if !st.Loading {
		t.Fatalf("expected loading while the request is in flight")
	}
	if _, _, err := s.Submit(ctx, "sub", sub); !errors.Is(err, trainform.ErrSubmitInProgress) {
		t.Fatalf("second submit err=%v", err)
	}

	close(sub.release)
	r := <-done
	if r.err != nil || len(r.resp.Runs) != 1 {
		t.Fatalf("submit: resp=%+v err=%v", r.resp, r.err)
	}
	st, _ = s.View(ctx, "sub")
	if st.Loading {
		t.Fatalf("loading must be cleared after success")
	}
}

func TestSessionsSubmitFailureClearsLoading(t *testing.T) {
	s := NewSessions(NewMemory(time.Hour), nil)
	ctx := context.Background()
	readySession(t, s, "fail")

	sub := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{}), err: apierr.Unreachable(errors.New("refused"))}
	close(sub.release)
	st, _, err := s.Submit(ctx, "fail", sub)
	if apierr.KindOf(err) != apierr.KindServerUnreachable {
		t.Fatalf("err=%v", err)
	}
	if st == nil || st.Loading {
		t.Fatalf("loading must be cleared after failure: %+v", st)
	}
}

func TestSessionsSubmitValidation(t *testing.T) {
	s := NewSessions(NewMemory(time.Hour), nil)
	sub := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{})}
	_, _, err := s.Submit(context.Background(), "empty", sub)
	var fe *trainform.FieldError
	if !errors.As(err, &fe) || fe.Field != "file" {
		t.Fatalf("err=%v", err)
	}
	select {
	case <-sub.started:
		t.Fatalf("validation failure must not reach the API")
	default:
	}
}

// flakyStore fails the saves whose 1-based index is in failAt.
type flakyStore struct {
	Store
	mu     sync.Mutex
	saves  int
	failAt map[int]bool
}

func (f *flakyStore) Save(ctx context.Context, session string, st trainform.State) error {
	f.mu.Lock()
	f.saves++
	fail := f.failAt[f.saves]
	f.mu.Unlock()
	if fail {
		return errors.New("transient save failure")
	}
	return f.Store.Save(ctx, session, st)
}

type countingSubmitter struct{ calls int }

func (c *countingSubmitter) SubmitTraining(context.Context, client.TrainingRequest) (*client.TrainingResponse, error) {
	c.calls++
	return &client.TrainingResponse{Runs: []client.TrainingRun{{ID: "1"}}}, nil
}

func TestSessionsSubmitSurvivesFailedFinalSave(t *testing.T) {
	cases := []struct {
		name          string
		failAt        map[int]bool
		storedLoading bool
	}{
		// save 1 prepares the draft, save 2 sets loading, saves 3..5 clear it
		{"retry succeeds", map[int]bool{3: true}, false},
		{"every retry fails", map[int]bool{3: true, 4: true, 5: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &flakyStore{Store: NewMemory(time.Hour), failAt: tc.failAt}
			s := NewSessions(store, nil)
			ctx := context.Background()
			readySession(t, s, "flaky")

			sub := &countingSubmitter{}
			st, resp, err := s.Submit(ctx, "flaky", sub)
			if err != nil || resp == nil || len(resp.Runs) != 1 {
				t.Fatalf("submit: resp=%+v err=%v", resp, err)
			}
			if note := trainform.NotificationFor(err); note.Message != trainform.MsgTrainSuccess {
				t.Fatalf("notification=%+v", note)
			}
			if st == nil || st.Loading {
				t.Fatalf("returned state must not be loading: %+v", st)
			}
			stored, _ := store.Load(ctx, "flaky")
			if stored.Loading != tc.storedLoading {
				t.Fatalf("stored loading=%v want %v", stored.Loading, tc.storedLoading)
			}

			if _, _, err := s.Submit(ctx, "flaky", sub); err != nil {
				t.Fatalf("second submit: %v", err)
			}
			if sub.calls != 2 {
				t.Fatalf("api calls=%d want 2", sub.calls)
			}
			stored, _ = store.Load(ctx, "flaky")
			if stored.Loading {
				t.Fatalf("loading left set after second submit")
			}
		})
	}
}
