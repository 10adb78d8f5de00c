package trainform

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/platform/apierr"
)

// Submitter is the part of the API client the form needs.
type Submitter interface {
	SubmitTraining(ctx context.Context, req client.TrainingRequest) (*client.TrainingResponse, error)
}

// FieldError is a validation failure attached to one form field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

const (
	MsgTrainSuccess = "Models trained successfully"
	MsgTrainFailure = "Failed to train models"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Validate checks the preconditions for submitting without touching state.
func (s State) Validate() error {
	if s.File == nil {
		return &FieldError{Field: "file", Err: ErrNoFile}
	}
	if len(s.TargetColumns) == 0 {
		return &FieldError{Field: "target_columns", Err: ErrNoTargets}
	}
	return nil
}

// Request assembles the training request from the state.
func (s State) Request() client.TrainingRequest {
	models := make([]client.ModelConfig, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		hp := make(map[string]any, len(b.Hyperparameters))
		for k, v := range b.Hyperparameters {
			hp[k] = v
		}
		models = append(models, client.ModelConfig{
			Name:            b.Name,
			ModelType:       string(b.ModelType),
			Hyperparameters: hp,
		})
	}
	req := client.TrainingRequest{
		Models:        models,
		TargetColumns: append([]string{}, s.TargetColumns...),
	}
	if s.File != nil {
		req.FileName = s.File.Name
		req.File = append([]byte{}, s.File.Content...)
	}
	return req
}

// BeginSubmit validates the form and marks it loading. The returned request
// must be followed by exactly one EndSubmit call.
func (f *Form) BeginSubmit() (client.TrainingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.st.Loading {
		return client.TrainingRequest{}, ErrSubmitInProgress
	}
	if err := f.st.Validate(); err != nil {
		return client.TrainingRequest{}, err
	}
	f.st.Loading = true
	return f.st.Request(), nil
}

// EndSubmit clears the loading flag.
func (f *Form) EndSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Loading = false
}

// Loading reports whether a submission is in flight.
func (f *Form) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.Loading
}

// Submit validates, sends the request through s and clears the loading flag
// in every outcome. Validation failures never reach s.
func (f *Form) Submit(ctx context.Context, s Submitter) (*client.TrainingResponse, error) {
	req, err := f.BeginSubmit()
	if err != nil {
		return nil, err
	}
	defer f.EndSubmit()

	resp, err := s.SubmitTraining(ctx, req)
	if err != nil {
		f.log.Warn("training request failed", "file", req.FileName, "models", len(req.Models), "error", err)
		return nil, fmt.Errorf("submit training: %w", err)
	}
	f.log.Info("training request accepted", "file", req.FileName, "models", len(req.Models), "runs", len(resp.Runs))
	return resp, nil
}

// NotificationFor renders the outcome of Submit for the user.
func NotificationFor(err error) Notification {
	if err == nil {
		return Notification{Level: LevelSuccess, Message: MsgTrainSuccess}
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return Notification{Level: LevelError, Message: fe.Err.Error()}
	}
	if errors.Is(err, ErrSubmitInProgress) {
		return Notification{Level: LevelError, Message: ErrSubmitInProgress.Error()}
	}
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Error() != "" {
		return Notification{Level: LevelError, Message: ae.Error()}
	}
	return Notification{Level: LevelError, Message: MsgTrainFailure}
}
