package drafts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainform"
)

// Sessions serialises read-modify-write cycles on each session's draft so
// two requests for the same session never interleave.
type Sessions struct {
	store Store
	log   *logger.Logger

	mu       sync.Mutex
	locks    map[string]*sessionLock
	inflight map[string]struct{}
}

// endSubmitAttempts bounds how often clearing the loading flag is retried.
const endSubmitAttempts = 3

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewSessions(store Store, log *logger.Logger) *Sessions {
	if log == nil {
		log = logger.Nop()
	}
	return &Sessions{
		store:    store,
		log:      log.With("service", "DraftSessions"),
		locks:    map[string]*sessionLock{},
		inflight: map[string]struct{}{},
	}
}

func (s *Sessions) acquire(session string) func() {
	s.mu.Lock()
	l := s.locks[session]
	if l == nil {
		l = &sessionLock{}
		s.locks[session] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, session)
		}
		s.mu.Unlock()
	}
}

func (s *Sessions) load(ctx context.Context, session string) (*trainform.Form, error) {
	st, err := s.store.Load(ctx, session)
	if errors.Is(err, ErrNotFound) {
		return trainform.New(s.log), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return trainform.Restore(st, s.log), nil
}

// View returns the session's form state, or a fresh form when none is saved.
func (s *Sessions) View(ctx context.Context, session string) (trainform.State, error) {
	if strings.TrimSpace(session) == "" {
		return trainform.State{}, errors.New("session required")
	}
	release := s.acquire(session)
	defer release()
	f, err := s.load(ctx, session)
	if err != nil {
		return trainform.State{}, err
	}
	return f.Snapshot(), nil
}

// Update applies fn to the session's form and saves the result. When fn
// fails nothing is saved and its error is returned.
func (s *Sessions) Update(ctx context.Context, session string, fn func(f *trainform.Form) error) (trainform.State, error) {
	if strings.TrimSpace(session) == "" {
		return trainform.State{}, errors.New("session required")
	}
	release := s.acquire(session)
	defer release()

	f, err := s.load(ctx, session)
	if err != nil {
		return trainform.State{}, err
	}
	if err := fn(f); err != nil {
		return f.Snapshot(), err
	}
	st := f.Snapshot()
	if err := s.store.Save(ctx, session, st); err != nil {
		return st, fmt.Errorf("save draft: %w", err)
	}
	return st, nil
}

// Submit runs a training submission for the session. The loading flag is
// persisted for the duration of the remote call so other requests see it,
// and the session lock is not held while waiting on the API.
//
// Which sessions are submitting is tracked in process memory. A persisted
// loading flag that no submission here owns is stale (its final save failed)
// and is cleared.
func (s *Sessions) Submit(ctx context.Context, session string, sub trainform.Submitter) (*trainform.State, *client.TrainingResponse, error) {
	if !s.markInflight(session) {
		return nil, nil, trainform.ErrSubmitInProgress
	}
	defer s.clearInflight(session)

	var req client.TrainingRequest
	if _, err := s.Update(ctx, session, func(f *trainform.Form) error {
		if f.Loading() {
			s.log.Warn("clearing stale loading flag", "session", session)
			f.EndSubmit()
		}
		r, err := f.BeginSubmit()
		req = r
		return err
	}); err != nil {
		return nil, nil, err
	}

	resp, callErr := sub.SubmitTraining(ctx, req)

	// the form must leave the loading state even if the caller went away
	st, endErr := s.endSubmit(context.WithoutCancel(ctx), session)
	if endErr != nil {
		s.log.Error("clearing loading flag failed", "session", session, "attempts", endSubmitAttempts, "error", endErr)
	}
	if callErr != nil {
		s.log.Warn("training request failed", "session", session, "models", len(req.Models), "error", callErr)
		return st, nil, fmt.Errorf("submit training: %w", callErr)
	}
	s.log.Info("training request accepted", "session", session, "models", len(req.Models), "runs", len(resp.Runs))
	return st, resp, nil
}

// endSubmit clears the loading flag, retrying failed saves. The returned
// state is nil only when the draft could not be loaded at all.
func (s *Sessions) endSubmit(ctx context.Context, session string) (*trainform.State, error) {
	var (
		st  *trainform.State
		err error
	)
	for attempt := 0; attempt < endSubmitAttempts; attempt++ {
		_, err = s.Update(ctx, session, func(f *trainform.Form) error {
			f.EndSubmit()
			snap := f.Snapshot()
			st = &snap
			return nil
		})
		if err == nil {
			return st, nil
		}
	}
	return st, err
}

func (s *Sessions) markInflight(session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[session]; busy {
		return false
	}
	s.inflight[session] = struct{}{}
	return true
}

func (s *Sessions) clearInflight(session string) {
	s.mu.Lock()
	delete(s.inflight, session)
	s.mu.Unlock()
}

// Reset clears the session's form.
func (s *Sessions) Reset(ctx context.Context, session string) (trainform.State, error) {
	return s.Update(ctx, session, func(f *trainform.Form) error {
		f.Reset()
		return nil
	})
}
