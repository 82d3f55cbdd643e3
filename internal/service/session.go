package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"pagegen-backend/internal/config"
	"pagegen-backend/internal/metrics"
	"pagegen-backend/internal/model"
	"pagegen-backend/internal/sanitizer"
	"pagegen-backend/internal/storage"
	"pagegen-backend/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// SystemMessageID is the fixed id of the instruction preamble.
const SystemMessageID = "code"

type State int

const (
	Idle State = iota
	AwaitingResponse
	Switching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	case Switching:
		return "switching"
	default:
		return "unknown"
	}
}

// Generator streams one assistant reply for a message sequence.
// einoModel.ChatModel satisfies it.
type Generator interface {
	Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error)
}

// Artifact is the sanitized source of the latest assistant message, or an
// error marker after a failed turn.
type Artifact struct {
	ProjectID string
	Source    string
	Revision  uint64
	State     State
	Failed    bool
}

type Listener func(Artifact)

// Turn is one submitted prompt and its streamed reply.
type Turn struct {
	ID        string
	ProjectID string

	assistantIdx int
	started      time.Time
	done         chan struct{}
	err          error
}

func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Err reports why the turn failed. Only meaningful after Done is closed.
func (t *Turn) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the turn finishes or ctx ends.
func (t *Turn) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session owns the in-memory conversation log of the active project and
// drives the request/response cycle against the generator.
type Session struct {
	gen       Generator
	store     storage.Storage
	persister *Persister
	workspace *Workspace
	metrics   *metrics.Metrics

	turnTimeout time.Duration
	loadTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// switchMu serialises project switches; emitMu serialises a mutation
	// with its publication so listeners see revisions in order.
	switchMu sync.Mutex
	emitMu   sync.Mutex

	mu           sync.RWMutex
	system       model.Message
	log          []model.Message
	state        State
	turn         *Turn
	failure      string
	artifact     Artifact
	revision     uint64
	listeners    map[int]Listener
	nextListener int
	closed       bool
}

func NewSession(gen Generator, store storage.Storage, persister *Persister, ws *Workspace, cfg config.SessionConfig, m *metrics.Metrics) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	system := model.Message{ID: SystemMessageID, Role: model.RoleSystem, Content: cfg.SystemPrompt}

	return &Session{
		gen:         gen,
		store:       store,
		persister:   persister,
		workspace:   ws,
		metrics:     m,
		turnTimeout: cfg.TurnTimeout,
		loadTimeout: cfg.PersistTimeout,
		ctx:         ctx,
		cancel:      cancel,
		system:      system,
		log:         []model.Message{system},
		listeners:   make(map[int]Listener),
	}
}

func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Artifact() Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact
}

func (s *Session) Workspace() *Workspace {
	return s.workspace
}

// Subscribe registers l for artifact updates. Listeners run synchronously
// and must not call mutating Session methods.
func (s *Session) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SubmitPrompt appends a user message and starts streaming the reply.
// It is refused unless the session is Idle.
func (s *Session) SubmitPrompt(text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}

	var (
		turn  *Turn
		input []*schema.Message
		err   error
	)
	s.mutate(func() bool {
		switch {
		case s.closed:
			err = ErrSessionClosed
			return false
		case s.state != Idle:
			err = ErrTurnInProgress
			return false
		}

		turn = &Turn{
			ID:           uuid.New().String(),
			ProjectID:    s.workspace.ActiveProjectID(),
			assistantIdx: -1,
			started:      time.Now(),
			done:         make(chan struct{}),
		}
		s.log = append(s.log, model.Message{ID: turn.ID, Role: model.RoleUser, Content: text})
		s.state = AwaitingResponse
		s.turn = turn
		s.failure = ""
		input = model.ToSchema(s.log)
		return true
	})
	if err != nil {
		if errors.Is(err, ErrTurnInProgress) {
			s.metrics.RecordRejectedPrompt()
		}
		return nil, err
	}

	logger.WithProject(turn.ProjectID).Infof("Turn %s started", turn.ID)
	go s.runTurn(turn, input)
	return turn, nil
}

func (s *Session) runTurn(turn *Turn, input []*schema.Message) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.turnTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.turnTimeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	err := s.consume(ctx, turn, input)
	s.finishTurn(turn, err)
}

func (s *Session) consume(ctx context.Context, turn *Turn, input []*schema.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()

	stream, err := s.gen.Stream(ctx, input)
	if err != nil {
		return fmt.Errorf("open model stream: %w", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if chunk == nil {
			return ErrMalformedFragment
		}
		if chunk.Content == "" {
			continue
		}
		s.appendFragment(turn, chunk.Content)
	}
}

// appendFragment extends the turn's assistant message, creating it on the
// first fragment.
func (s *Session) appendFragment(turn *Turn, fragment string) {
	s.mutate(func() bool {
		if turn.assistantIdx < 0 {
			s.log = append(s.log, model.Message{ID: uuid.New().String(), Role: model.RoleAssistant})
			turn.assistantIdx = len(s.log) - 1
		}
		s.log[turn.assistantIdx].Content += fragment
		return true
	})
}

func (s *Session) finishTurn(turn *Turn, turnErr error) {
	s.mutate(func() bool {
		if turn.assistantIdx >= 0 {
			msg := &s.log[turn.assistantIdx]
			msg.Content = sanitizer.Sanitize(msg.Content)
		}
		if turnErr != nil {
			s.failure = turnErr.Error()
		}
		// Queued before Idle so a switch's Flush always covers this save.
		if turn.ProjectID != "" {
			s.persister.EnqueueSave(turn.ProjectID, model.FilterPersistable(s.log))
		}
		s.state = Idle
		s.turn = nil
		return true
	})

	log := logger.WithProject(turn.ProjectID)
	status := "completed"
	if turnErr != nil {
		status = "failed"
		log.Errorf("Turn %s failed: %v", turn.ID, turnErr)
	} else {
		log.Infof("Turn %s completed", turn.ID)
	}
	s.metrics.RecordTurn(status, time.Since(turn.started).Seconds())

	if turn.ProjectID == "" {
		log.Warn("No active project, turn not persisted")
	}

	turn.err = turnErr
	close(turn.done)
}

// SwitchProject replaces the log with the stored conversation of projectID.
// It waits for an in-flight turn to finish first, so that turn is persisted
// under the project it was submitted to. Load failures leave the log at
// just the system preamble.
func (s *Session) SwitchProject(ctx context.Context, projectID string) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	for {
		var (
			wait <-chan struct{}
			err  error
		)
		s.mutate(func() bool {
			if s.closed {
				err = ErrSessionClosed
				return false
			}
			if s.state == AwaitingResponse {
				wait = s.turn.Done()
				return false
			}
			s.state = Switching
			s.failure = ""
			s.log = []model.Message{s.system}
			s.workspace.setActive(projectID)
			return true
		})
		if err != nil {
			return err
		}
		if wait == nil {
			break
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	stored := s.load(ctx, projectID)

	s.mutate(func() bool {
		s.log = append([]model.Message{s.system}, stored...)
		s.state = Idle
		return true
	})

	logger.WithProject(projectID).Infof("Switched project, %d stored messages", len(stored))
	return nil
}

func (s *Session) load(ctx context.Context, projectID string) []model.Message {
	if projectID == "" {
		return nil
	}
	log := logger.WithProject(projectID)

	// The caller only bounds the wait for a running turn. Once the log has
	// been reset the load must not be abandoned halfway.
	ctx = context.WithoutCancel(ctx)

	if err := s.persister.Flush(ctx); err != nil {
		log.Warnf("Pending writes not flushed before load: %v", err)
	}

	if s.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
	}

	msgs, err := s.store.GetMessages(ctx, projectID)
	s.metrics.RecordPersistence("load", err)
	if err != nil {
		log.Errorf("Failed to load messages: %v", err)
		return nil
	}
	return model.FilterPersistable(msgs)
}

// Close refuses further work, cancels an in-flight turn and drains pending writes.
func (s *Session) Close(ctx context.Context) error {
	var wait <-chan struct{}
	s.mu.Lock()
	s.closed = true
	if s.turn != nil {
		wait = s.turn.Done()
	}
	s.mu.Unlock()

	s.cancel()
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.persister.Close(ctx)
}

// mutate applies fn under the state lock and, when fn reports a change,
// publishes the recomputed artifact to every listener.
func (s *Session) mutate(fn func() bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.revision++
	s.artifact = s.computeArtifactLocked()
	artifact := s.artifact
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(artifact)
	}
}

func (s *Session) computeArtifactLocked() Artifact {
	artifact := Artifact{
		ProjectID: s.workspace.ActiveProjectID(),
		Revision:  s.revision,
		State:     s.state,
	}

	if s.failure != "" {
		artifact.Source = "Error: " + s.failure
		artifact.Failed = true
		return artifact
	}

	for i := len(s.log) - 1; i >= 0; i-- {
		if s.log[i].Role == model.RoleAssistant {
			artifact.Source = sanitizer.Sanitize(s.log[i].Content)
			break
		}
	}
	return artifact
}
