package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pagegen-backend/internal/config"
	"pagegen-backend/internal/model"
	"pagegen-backend/internal/registry"
	"pagegen-backend/internal/storage"
	"pagegen-backend/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator streams a fixed list of fragments, optionally held back
// until gate is closed.
type scriptedGenerator struct {
	chunks      []string
	openErr     error
	recvErr     error
	nilFragment bool
	gate        chan struct{}

	mu     sync.Mutex
	inputs [][]*schema.Message
}

func (g *scriptedGenerator) Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	g.mu.Lock()
	g.inputs = append(g.inputs, input)
	g.mu.Unlock()

	if g.openErr != nil {
		return nil, g.openErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(g.chunks) + 1)
	go func() {
		defer sw.Close()
		if g.gate != nil {
			select {
			case <-g.gate:
			case <-ctx.Done():
				sw.Send(nil, ctx.Err())
				return
			}
		}
		for _, c := range g.chunks {
			sw.Send(schema.AssistantMessage(c, nil), nil)
		}
		if g.nilFragment {
			sw.Send(nil, nil)
		}
		if g.recvErr != nil {
			sw.Send(nil, g.recvErr)
		}
	}()
	return sr, nil
}

func (g *scriptedGenerator) lastInput() []*schema.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inputs[len(g.inputs)-1]
}

// countingStore records how often the log is fetched.
type countingStore struct {
	storage.Storage
	gets atomic.Int32
}

func (c *countingStore) GetMessages(ctx context.Context, projectID string) ([]model.Message, error) {
	c.gets.Add(1)
	return c.Storage.GetMessages(ctx, projectID)
}

type fixture struct {
	store     *countingStore
	registry  *registry.Registry
	persister *Persister
	workspace *Workspace
	session   *Session
}

func newFixture(t *testing.T, gen Generator, projects ...model.Project) *fixture {
	t.Helper()

	store := &countingStore{Storage: storage.NewMemoryStorage()}
	reg := registry.NewInMemory(projects...)
	persister := NewPersister(store, time.Second, nil)
	ws := NewWorkspace(reg, persister)
	session := NewSession(gen, store, persister, ws, config.SessionConfig{
		SystemPrompt:   "you write pages",
		TurnTimeout:    5 * time.Second,
		PersistTimeout: time.Second,
	}, nil)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = session.Close(ctx)
	})

	return &fixture{store: store, registry: reg, persister: persister, workspace: ws, session: session}
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (f *fixture) stored(t *testing.T, projectID string) []model.Message {
	t.Helper()
	require.NoError(t, f.persister.Flush(testCtx(t)))
	msgs, err := f.store.GetMessages(context.Background(), projectID)
	require.NoError(t, err)
	return msgs
}

func stripIDs(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = model.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

const redButton = "export default function Page(){return <button className='bg-red-500'/>}"

func TestScenario_FirstRunRedButton(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{
		"```jsx\nexport default ",
		"function Page(){return <button className='bg-red-500'/>}\n",
		"```",
	}}
	f := newFixture(t, gen)
	ctx := testCtx(t)

	project, err := f.workspace.Bootstrap(ctx, f.session)
	require.NoError(t, err)
	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, project.ID, f.workspace.ActiveProjectID())

	turn, err := f.session.SubmitPrompt("a red button")
	require.NoError(t, err)
	require.NoError(t, turn.Wait(ctx))
	assert.Equal(t, project.ID, turn.ProjectID)

	artifact := f.session.Artifact()
	assert.Equal(t, redButton, artifact.Source)
	assert.False(t, artifact.Failed)
	assert.Equal(t, Idle, artifact.State)
	assert.Equal(t, project.ID, artifact.ProjectID)

	assert.Equal(t, []model.Message{
		{Role: model.RoleUser, Content: "a red button"},
		{Role: model.RoleAssistant, Content: redButton},
	}, stripIDs(f.stored(t, project.ID)))

	err = f.store.CreateProject(context.Background(), project.ID)
	assert.ErrorIs(t, err, storage.ErrProjectExists, "bootstrap must create the project on the gateway")
}

func TestSession_StartsWithSystemPreamble(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{})

	msgs := f.session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, SystemMessageID, msgs[0].ID)
	assert.Equal(t, Idle, f.session.State())
}

func TestSubmitPrompt_SendsFullLog(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"page"}}
	f := newFixture(t, gen)
	ctx := testCtx(t)
	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	turn, err := f.session.SubmitPrompt("first")
	require.NoError(t, err)
	require.NoError(t, turn.Wait(ctx))

	turn, err = f.session.SubmitPrompt("second")
	require.NoError(t, err)
	require.NoError(t, turn.Wait(ctx))

	input := gen.lastInput()
	require.Len(t, input, 4)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, "first", input[1].Content)
	assert.Equal(t, schema.Assistant, input[2].Role)
	assert.Equal(t, "second", input[3].Content)
}

func TestSubmitPrompt_RefusedWhileAwaiting(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"page"}, gate: make(chan struct{})}
	f := newFixture(t, gen)
	ctx := testCtx(t)
	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	turn, err := f.session.SubmitPrompt("one")
	require.NoError(t, err)
	assert.Equal(t, AwaitingResponse, f.session.State())

	_, err = f.session.SubmitPrompt("two")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	close(gen.gate)
	require.NoError(t, turn.Wait(ctx))
	assert.Equal(t, Idle, f.session.State())

	users := 0
	for _, m := range f.session.Messages() {
		if m.Role == model.RoleUser {
			users++
		}
	}
	assert.Equal(t, 1, users)

	turn, err = f.session.SubmitPrompt("three")
	require.NoError(t, err)
	require.NoError(t, turn.Wait(ctx))
}

func TestSubmitPrompt_Empty(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{})

	_, err := f.session.SubmitPrompt("   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Len(t, f.session.Messages(), 1)
}

func TestTurn_OpenFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{openErr: errors.New("boom")})
	ctx := testCtx(t)
	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	turn, err := f.session.SubmitPrompt("a red button")
	require.NoError(t, err)
	assert.Error(t, turn.Wait(ctx))
	assert.Error(t, turn.Err())

	assert.Equal(t, Idle, f.session.State())
	artifact := f.session.Artifact()
	assert.True(t, artifact.Failed)
	assert.Equal(t, "Error: open model stream: boom", artifact.Source)

	assert.Equal(t, []model.Message{
		{Role: model.RoleUser, Content: "a red button"},
	}, stripIDs(f.stored(t, "p1")))
}

func TestTurn_StreamErrorKeepsPartialContent(t *testing.T) {
	gen := &scriptedGenerator{
		chunks:  []string{"```jsx\n", "export default function Page(){"},
		recvErr: errors.New("connection reset"),
	}
	f := newFixture(t, gen)
	ctx := testCtx(t)
	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	turn, err := f.session.SubmitPrompt("a page")
	require.NoError(t, err)
	assert.Error(t, turn.Wait(ctx))

	artifact := f.session.Artifact()
	assert.True(t, artifact.Failed)
	assert.Contains(t, artifact.Source, "connection reset")

	stored := stripIDs(f.stored(t, "p1"))
	require.Len(t, stored, 2)
	assert.Equal(t, "export default function Page(){", stored[1].Content)
}

func TestTurn_NilFragmentFails(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"partial"}, nilFragment: true}
	f := newFixture(t, gen)
	ctx := testCtx(t)
	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	turn, err := f.session.SubmitPrompt("a page")
	require.NoError(t, err)
	assert.ErrorIs(t, turn.Wait(ctx), ErrMalformedFragment)
	assert.Equal(t, Idle, f.session.State())
}

func TestTurn_NextSubmitClearsFailure(t *testing.T) {
	gen := &scriptedGenerator{openErr: errors.New("boom")}
	f := newFixture(t, gen)
	ctx := testCtx(t)
	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	turn, _ := f.session.SubmitPrompt("one")
	_ = turn.Wait(ctx)
	require.True(t, f.session.Artifact().Failed)

	gen.openErr = nil
	gen.chunks = []string{"export default function Page(){}"}
	turn, err := f.session.SubmitPrompt("two")
	require.NoError(t, err)
	require.NoError(t, turn.Wait(ctx))

	assert.False(t, f.session.Artifact().Failed)
	assert.Equal(t, "export default function Page(){}", f.session.Artifact().Source)
}

func TestSwitchProject_UnknownProjectYieldsSystemOnly(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{})

	require.NoError(t, f.session.SwitchProject(testCtx(t), "fresh"))

	msgs := f.session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "fresh", f.workspace.ActiveProjectID())
	assert.Equal(t, "", f.session.Artifact().Source)
}

func TestSwitchProject_EmptyIDSkipsFetch(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{})

	require.NoError(t, f.session.SwitchProject(testCtx(t), ""))

	assert.Len(t, f.session.Messages(), 1)
	assert.Equal(t, int32(0), f.store.gets.Load())
}

func TestSwitchProject_RebuildsFromStorage(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{})
	ctx := testCtx(t)
	require.NoError(t, f.store.SaveMessages(ctx, "p1", []model.Message{
		{ID: "stale", Role: model.RoleSystem, Content: "old preamble"},
		{ID: "u1", Role: model.RoleUser, Content: "a red button"},
		{Role: model.RoleUser, Content: "no id"},
		{ID: "a1", Role: model.RoleAssistant, Content: "```jsx\n<button/>\n```"},
	}))

	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	msgs := f.session.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "you write pages", msgs[0].Content)
	assert.Equal(t, "u1", msgs[1].ID)
	assert.Equal(t, "a1", msgs[2].ID)
	assert.Equal(t, "<button/>", f.session.Artifact().Source)
}

func TestSwitchProject_WaitsForInFlightTurn(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"page for p1"}, gate: make(chan struct{})}
	f := newFixture(t, gen)
	ctx := testCtx(t)
	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	turn, err := f.session.SubmitPrompt("make p1")
	require.NoError(t, err)

	switched := make(chan error, 1)
	go func() { switched <- f.session.SwitchProject(ctx, "p2") }()

	select {
	case err := <-switched:
		t.Fatalf("switch returned before the turn finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, "p1", f.workspace.ActiveProjectID())

	close(gen.gate)
	require.NoError(t, <-switched)
	require.NoError(t, turn.Wait(ctx))

	assert.Equal(t, "p2", f.workspace.ActiveProjectID())
	assert.Len(t, f.session.Messages(), 1)
	assert.Equal(t, []model.Message{
		{Role: model.RoleUser, Content: "make p1"},
		{Role: model.RoleAssistant, Content: "page for p1"},
	}, stripIDs(f.stored(t, "p1")))
	assert.Empty(t, f.stored(t, "p2"))
}

func TestSwitchProject_ContextCancelledWhileWaiting(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"x"}, gate: make(chan struct{})}
	f := newFixture(t, gen)
	require.NoError(t, f.session.SwitchProject(testCtx(t), "p1"))

	_, err := f.session.SubmitPrompt("slow")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.session.SwitchProject(ctx, "p2"), context.DeadlineExceeded)
	assert.Equal(t, "p1", f.workspace.ActiveProjectID())

	close(gen.gate)
}

// stallingWriter blocks the first log write containing match until released.
type stallingWriter struct {
	match   []byte
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (w *stallingWriter) Write(p []byte) (int, error) {
	if bytes.Contains(p, w.match) {
		w.once.Do(func() {
			close(w.reached)
			<-w.release
		})
	}
	return len(p), nil
}

func TestSwitchProject_SameProjectRightAfterTurnKeepsTurn(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{chunks: []string{"page"}})
	ctx := testCtx(t)
	require.NoError(t, f.session.SwitchProject(ctx, "p1"))

	w := &stallingWriter{match: []byte("completed"), reached: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, logger.InitWithOutput("info", "text", w))
	t.Cleanup(func() { _ = logger.InitWithOutput("error", "text", io.Discard) })
	var released sync.Once
	release := func() { released.Do(func() { close(w.release) }) }
	defer release()

	turn, err := f.session.SubmitPrompt("a page")
	require.NoError(t, err)

	select {
	case <-w.reached:
	case <-ctx.Done():
		t.Fatal("turn never finished")
	}
	assert.Equal(t, Idle, f.session.State())

	loads := f.store.gets.Load()
	switched := make(chan error, 1)
	go func() { switched <- f.session.SwitchProject(ctx, "p1") }()
	assert.Eventually(t, func() bool {
		return f.store.gets.Load() > loads && f.session.State() == Idle
	}, 2*time.Second, 5*time.Millisecond)

	release()
	require.NoError(t, <-switched)
	require.NoError(t, turn.Wait(ctx))

	msgs := f.session.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "page", msgs[2].Content)
	assert.Len(t, f.stored(t, "p1"), 2)
}

// cancellingStore cancels the caller's context as soon as a load starts.
type cancellingStore struct {
	storage.Storage
	cancel context.CancelFunc
}

func (c *cancellingStore) GetMessages(ctx context.Context, projectID string) ([]model.Message, error) {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Storage.GetMessages(ctx, projectID)
}

func TestSwitchProject_LoadSurvivesCallerCancel(t *testing.T) {
	ctx := testCtx(t)
	backing := storage.NewMemoryStorage()
	require.NoError(t, backing.SaveMessages(ctx, "p1", []model.Message{
		{ID: "u1", Role: model.RoleUser, Content: "a red button"},
		{ID: "a1", Role: model.RoleAssistant, Content: "<button/>"},
	}))

	switchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	store := &cancellingStore{Storage: backing, cancel: cancel}

	persister := NewPersister(store, time.Second, nil)
	ws := NewWorkspace(registry.NewInMemory(), persister)
	session := NewSession(&scriptedGenerator{chunks: []string{"<button/> again"}}, store, persister, ws, config.SessionConfig{
		SystemPrompt: "you write pages",
		TurnTimeout:  5 * time.Second,
	}, nil)
	t.Cleanup(func() { _ = session.Close(context.Background()) })

	require.NoError(t, session.SwitchProject(switchCtx, "p1"))
	require.Len(t, session.Messages(), 3)

	turn, err := session.SubmitPrompt("again")
	require.NoError(t, err)
	require.NoError(t, turn.Wait(ctx))
	require.NoError(t, persister.Flush(ctx))

	stored, err := backing.GetMessages(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestSubscribe_PublishesRevisionsInOrder(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"```jsx\n", "export ", "default ", "function Page(){}\n", "```"}}
	f := newFixture(t, gen)
	ctx := testCtx(t)

	var (
		mu   sync.Mutex
		seen []Artifact
	)
	unsubscribe := f.session.Subscribe(func(a Artifact) {
		mu.Lock()
		seen = append(seen, a)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, f.session.SwitchProject(ctx, "p1"))
	turn, err := f.session.SubmitPrompt("page")
	require.NoError(t, err)
	require.NoError(t, turn.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Revision, seen[i-1].Revision)
	}

	last := seen[len(seen)-1]
	assert.Equal(t, "export default function Page(){}", last.Source)
	assert.Equal(t, Idle, last.State)

	var sawStreaming bool
	for _, a := range seen {
		if a.State == AwaitingResponse && a.Source != "" {
			sawStreaming = true
		}
	}
	assert.True(t, sawStreaming, "fragments should be published while streaming")
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{})
	var calls atomic.Int32
	unsubscribe := f.session.Subscribe(func(Artifact) { calls.Add(1) })

	require.NoError(t, f.session.SwitchProject(testCtx(t), ""))
	before := calls.Load()
	assert.Greater(t, before, int32(0))

	unsubscribe()
	unsubscribe()
	require.NoError(t, f.session.SwitchProject(testCtx(t), ""))
	assert.Equal(t, before, calls.Load())
}

func TestSession_ClosedRefusesWork(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{})
	require.NoError(t, f.session.Close(testCtx(t)))

	_, err := f.session.SubmitPrompt("late")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, f.session.SwitchProject(testCtx(t), "p1"), ErrSessionClosed)
}

func TestSession_CloseCancelsInFlightTurn(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"x"}, gate: make(chan struct{})}
	f := newFixture(t, gen)
	require.NoError(t, f.session.SwitchProject(testCtx(t), "p1"))

	turn, err := f.session.SubmitPrompt("never answered")
	require.NoError(t, err)

	require.NoError(t, f.session.Close(testCtx(t)))
	assert.ErrorIs(t, turn.Err(), context.Canceled)
	assert.Equal(t, Idle, f.session.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_response", AwaitingResponse.String())
	assert.Equal(t, "switching", Switching.String())
}
