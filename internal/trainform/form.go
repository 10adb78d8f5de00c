// Package trainform holds the state of the dynamic training form: the model
// blocks being configured, the selected dataset file, the columns read from
// its header and the chosen target columns.
package trainform

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/yungbote/mlcompare/internal/hyperparams"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

var (
	ErrBlockIndex       = errors.New("model block index out of range")
	ErrUnknownModelType = errors.New("unknown model type")
	ErrNoModelType      = errors.New("select a model type first")
	ErrUnknownParam     = errors.New("unknown hyperparameter")
	ErrInvalidValue     = errors.New("invalid hyperparameter value")
	ErrNoFile           = errors.New("Please select a file")
	ErrNoTargets        = errors.New("Please select at least one target column")
	ErrSubmitInProgress = errors.New("a training request is already in progress")
)

type ModelBlock struct {
	Name            string                  `json:"name"`
	ModelType       hyperparams.ModelTypeID `json:"model_type,omitempty"`
	Hyperparameters map[string]any          `json:"hyperparameters"`
}

// Configured reports whether a model type has been chosen for the block.
func (b ModelBlock) Configured() bool { return b.ModelType != "" }

type Column struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type File struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// State is the serialisable snapshot of a form.
type State struct {
	Blocks        []ModelBlock `json:"blocks"`
	File          *File        `json:"file,omitempty"`
	Columns       []Column     `json:"columns"`
	TargetColumns []string     `json:"target_columns"`
	Loading       bool         `json:"loading"`

	// FileGeneration increases on every file selection; header reads tagged
	// with an older generation are dropped.
	FileGeneration uint64 `json:"file_generation"`
}

type Form struct {
	mu  sync.Mutex
	st  State
	log *logger.Logger
}

// New returns a form holding one empty model block.
func New(log *logger.Logger) *Form {
	f := &Form{log: formLogger(log)}
	f.st = emptyState()
	return f
}

// Restore rebuilds a form from a saved snapshot.
func Restore(st State, log *logger.Logger) *Form {
	f := &Form{log: formLogger(log), st: st.clone()}
	if f.st.Blocks == nil {
		f.st.Blocks = []ModelBlock{}
	}
	if f.st.Columns == nil {
		f.st.Columns = []Column{}
	}
	if f.st.TargetColumns == nil {
		f.st.TargetColumns = []string{}
	}
	return f
}

func formLogger(log *logger.Logger) *logger.Logger {
	if log == nil {
		log = logger.Nop()
	}
	return log.With("service", "TrainingForm")
}

func emptyState() State {
	return State{
		Blocks:        []ModelBlock{newBlock()},
		Columns:       []Column{},
		TargetColumns: []string{},
	}
}

func newBlock() ModelBlock {
	return ModelBlock{Hyperparameters: map[string]any{}}
}

// Snapshot returns a deep copy of the current state.
func (f *Form) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.clone()
}

// AddBlock appends an unconfigured block and returns its index.
func (f *Form) AddBlock() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Blocks = append(f.st.Blocks, newBlock())
	return len(f.st.Blocks) - 1
}

func (f *Form) RemoveBlock(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.st.Blocks) {
		return fmt.Errorf("%w: %d (have %d)", ErrBlockIndex, i, len(f.st.Blocks))
	}
	f.st.Blocks = append(f.st.Blocks[:i], f.st.Blocks[i+1:]...)
	return nil
}

// SelectModelType switches block i to modelType. The hyperparameters are
// replaced wholesale with fresh defaults, even when the type is unchanged.
func (f *Form) SelectModelType(i int, modelType string) error {
	id, ok := hyperparams.Parse(modelType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModelType, modelType)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.st.Blocks) {
		return fmt.Errorf("%w: %d (have %d)", ErrBlockIndex, i, len(f.st.Blocks))
	}
	f.st.Blocks[i] = ModelBlock{
		Name:            string(id) + " Model",
		ModelType:       id,
		Hyperparameters: hyperparams.Defaults(id),
	}
	return nil
}

// SetHyperparameter records a user edit for block i after checking it
// against the registry.
func (f *Form) SetHyperparameter(i int, name string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.st.Blocks) {
		return fmt.Errorf("%w: %d (have %d)", ErrBlockIndex, i, len(f.st.Blocks))
	}
	b := &f.st.Blocks[i]
	if !b.Configured() {
		return ErrNoModelType
	}
	spec, ok := hyperparams.Find(b.ModelType, name)
	if !ok {
		return fmt.Errorf("%w: %s has no %q", ErrUnknownParam, b.ModelType, name)
	}
	v, err := spec.Normalize(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	b.Hyperparameters[name] = v
	return nil
}

// SetTargetColumns replaces the selected target columns. Selections are not
// checked against the available columns.
func (f *Form) SetTargetColumns(cols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(cols))
	out = append(out, cols...)
	f.st.TargetColumns = out
}

// SelectFile stores the file and publishes the columns parsed from its first line.
func (f *Form) SelectFile(name string, r io.Reader) error {
	gen := f.BeginFileSelection()
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	f.ApplyFile(gen, name, content)
	return nil
}

// BeginFileSelection starts a new file selection and returns its generation.
// Callers that read the file asynchronously pass the generation to ApplyFile.
func (f *Form) BeginFileSelection() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.FileGeneration++
	return f.st.FileGeneration
}

// ApplyFile installs content read for generation gen. It reports false and
// changes nothing when a newer selection has started since.
func (f *Form) ApplyFile(gen uint64, name string, content []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.st.FileGeneration {
		f.log.Debug("dropping stale file read", "file", name, "generation", gen, "current", f.st.FileGeneration)
		return false
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	f.st.File = &File{Name: name, Content: buf}
	f.st.Columns = HeaderColumns(buf)
	if stale := f.missingTargets(); len(stale) > 0 {
		f.log.Warn("selected targets are not in the new header", "file", name, "targets", stale)
	}
	return true
}

func (f *Form) missingTargets() []string {
	have := make(map[string]bool, len(f.st.Columns))
	for _, c := range f.st.Columns {
		have[c.Value] = true
	}
	var out []string
	for _, t := range f.st.TargetColumns {
		if !have[t] {
			out = append(out, t)
		}
	}
	return out
}

// Reset clears everything and leaves a single empty block.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	gen := f.st.FileGeneration
	f.st = emptyState()
	// keep the generation moving so an in-flight read cannot resurrect the old file
	f.st.FileGeneration = gen + 1
}

func (s State) clone() State {
	out := State{
		Loading:        s.Loading,
		FileGeneration: s.FileGeneration,
	}
	if s.Blocks != nil {
		out.Blocks = make([]ModelBlock, len(s.Blocks))
		for i, b := range s.Blocks {
			hp := make(map[string]any, len(b.Hyperparameters))
			for k, v := range b.Hyperparameters {
				hp[k] = v
			}
			out.Blocks[i] = ModelBlock{Name: b.Name, ModelType: b.ModelType, Hyperparameters: hp}
		}
	}
	if s.File != nil {
		content := make([]byte, len(s.File.Content))
		copy(content, s.File.Content)
		out.File = &File{Name: s.File.Name, Content: content}
	}
	if s.Columns != nil {
		out.Columns = append([]Column{}, s.Columns...)
	}
	if s.TargetColumns != nil {
		out.TargetColumns = append([]string{}, s.TargetColumns...)
	}
	return out
}
