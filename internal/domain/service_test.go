package domain

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
	"autoinc/internal/core/sequence"
	"autoinc/internal/core/tx"
	"autoinc/internal/domain/counter"
	"autoinc/internal/infrastructure/storage/memory"
	"autoinc/pkg/logger"
)

var (
	mainSchema   = entity.Schema{Model: "main", Fields: []string{"name"}}
	manualSchema = entity.Schema{Model: "manual", Fields: []string{"name", "like"}}
)

type fixture struct {
	svc   *EntityService
	repo  *memory.DocumentRepo
	store *sequence.MockStore
}

func newFixture(t *testing.T, txm tx.Manager) *fixture {
	t.Helper()

	store := &sequence.MockStore{}
	registry := counter.NewRegistry(counter.NewAllocator(store, counter.WithLogger(logger.Nop())))
	require.NoError(t, registry.Register(mainSchema, sequence.Binding{}))
	require.NoError(t, registry.Register(manualSchema, sequence.Binding{IncField: "like", DisableHooks: true}))

	repo := memory.NewDocumentRepo()
	return &fixture{
		svc: NewEntityService(EntityServiceConfig{
			Repo:      repo,
			TxManager: txm,
			Counters:  registry,
		}),
		repo:  repo,
		store: store,
	}
}

func newDoc(t *testing.T, schema entity.Schema, values map[string]any) *entity.MapDocument {
	t.Helper()
	doc, err := entity.NewMapDocument(schema, values)
	require.NoError(t, err)
	return doc
}

func TestEntityService_CreateAssignsSequence(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		doc := newDoc(t, mainSchema, map[string]any{"name": "doc"})
		require.NoError(t, f.svc.Create(ctx, doc))
		assert.False(t, doc.IsNew())

		stored, err := f.svc.Get(ctx, mainSchema, doc.Key())
		require.NoError(t, err)
		n, ok := stored.Values().Int("id")
		require.True(t, ok)
		assert.Equal(t, want, n)
	}
}

func TestEntityService_UpdateKeepsValue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := newDoc(t, mainSchema, map[string]any{"name": "before"})
	require.NoError(t, f.svc.Create(ctx, doc))

	require.NoError(t, doc.Set("name", "after"))
	require.NoError(t, f.svc.Save(ctx, doc))
	require.NoError(t, f.svc.Save(ctx, doc))

	v, _ := doc.Get("id")
	assert.Equal(t, int64(1), v)
	assert.Equal(t, 3, doc.Version())
	assert.Len(t, f.store.Calls(), 1)

	next := newDoc(t, mainSchema, nil)
	require.NoError(t, f.svc.Create(ctx, next))
	v, _ = next.Get("id")
	assert.Equal(t, int64(2), v, "updates did not advance the counter")
}

func TestEntityService_ManualMode(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	docs := make([]*entity.MapDocument, 0, 5)
	for i := 0; i < 5; i++ {
		doc := newDoc(t, manualSchema, map[string]any{"name": "m"})
		require.NoError(t, f.svc.Save(ctx, doc))
		_, ok := doc.Get("like")
		assert.False(t, ok)
		docs = append(docs, doc)
	}

	out, err := f.svc.SetNext(ctx, docs[0], "like")
	require.NoError(t, err)
	v, _ := out.Get("like")
	assert.Equal(t, int64(1), v)

	stored, err := f.svc.Get(ctx, manualSchema, docs[0].Key())
	require.NoError(t, err)
	n, _ := stored.Values().Int("like")
	assert.Equal(t, int64(1), n, "manual allocation is persisted")

	out, err = f.svc.SetNext(ctx, docs[1], "manual_like")
	require.NoError(t, err)
	v, _ = out.Get("like")
	assert.Equal(t, int64(2), v)
}

func TestEntityService_SetNextOnNewDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := newDoc(t, mainSchema, nil)
	_, err := f.svc.SetNext(ctx, doc, "main_id")
	require.NoError(t, err)

	v, _ := doc.Get("id")
	assert.Equal(t, int64(1), v)
	assert.False(t, doc.IsNew())
	assert.Len(t, f.store.Calls(), 1)
}

func TestEntityService_AllocationFailureAbortsSave(t *testing.T) {
	f := newFixture(t, nil)
	f.store.FindAndIncrementFunc = func(context.Context, string) (int64, error) {
		return 0, errors.New("store down")
	}

	doc := newDoc(t, mainSchema, map[string]any{"name": "x"})
	err := f.svc.Create(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, apperror.IsStorageUnavailable(err))

	assert.True(t, doc.IsNew())
	_, ok := doc.Get("id")
	assert.False(t, ok)
	assert.Zero(t, f.repo.Len())
}

func TestEntityService_AllocationOutsideTransaction(t *testing.T) {
	var inTx bool
	txm := tx.Func(func(ctx context.Context, fn func(ctx context.Context) error) error {
		inTx = true
		defer func() { inTx = false }()
		return fn(ctx)
	})
	f := newFixture(t, txm)

	allocatedInTx := false
	f.store.FindAndIncrementFunc = func(context.Context, string) (int64, error) {
		allocatedInTx = allocatedInTx || inTx
		return 1, nil
	}

	require.NoError(t, f.svc.Create(context.Background(), newDoc(t, mainSchema, nil)))
	assert.False(t, allocatedInTx)
}

func TestEntityService_RepositoryFailureBurnsValue(t *testing.T) {
	boom := errors.New("disk full")
	txm := tx.Func(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return boom
	})
	f := newFixture(t, txm)

	doc := newDoc(t, mainSchema, nil)
	err := f.svc.Create(context.Background(), doc)
	require.ErrorIs(t, err, boom)
	assert.True(t, doc.IsNew())
	_, ok := doc.Get("id")
	assert.False(t, ok, "failed create leaves the counter field unset")

	// The allocated value is not returned to the counter.
	f2 := NewEntityService(EntityServiceConfig{Repo: f.repo, Counters: f.svc.Counters()})
	next := newDoc(t, mainSchema, nil)
	require.NoError(t, f2.Create(context.Background(), next))
	v, _ := next.Get("id")
	assert.Equal(t, int64(2), v)
}

func newIssueService(t *testing.T, store sequence.Store, txm tx.Manager) (*EntityService, entity.Schema) {
	t.Helper()
	schema := entity.Schema{Model: "issue", Fields: []string{"team", "team_seq", "votes"}}
	registry := counter.NewRegistry(counter.NewAllocator(store, counter.WithLogger(logger.Nop())))
	require.NoError(t, registry.Register(schema,
		sequence.Binding{},
		sequence.Binding{CounterName: "team_seq", IncField: "team_seq", ReferenceFields: []string{"team"}},
		sequence.Binding{IncField: "votes", DisableHooks: true},
	))
	return NewEntityService(EntityServiceConfig{
		Repo:      memory.NewDocumentRepo(),
		TxManager: txm,
		Counters:  registry,
	}), schema
}

func TestEntityService_MultipleCounters(t *testing.T) {
	svc, schema := newIssueService(t, &sequence.MockStore{}, nil)
	ctx := context.Background()

	var docs []*entity.MapDocument
	for _, team := range []string{"red", "blue", "red"} {
		doc := newDoc(t, schema, map[string]any{"team": team})
		require.NoError(t, svc.Create(ctx, doc))
		docs = append(docs, doc)
	}

	stored, err := svc.Get(ctx, schema, docs[2].Key())
	require.NoError(t, err)
	values := stored.Values()
	n, _ := values.Int("id")
	seq, _ := values.Int("team_seq")
	assert.Equal(t, []int64{3, 2}, []int64{n, seq})
	_, hasVotes := values.Int("votes")
	assert.False(t, hasVotes)

	_, err = svc.SetNext(ctx, docs[1], "issue_votes")
	require.NoError(t, err)

	stored, err = svc.Get(ctx, schema, docs[1].Key())
	require.NoError(t, err)
	values = stored.Values()
	n, _ = values.Int("id")
	seq, _ = values.Int("team_seq")
	votes, _ := values.Int("votes")
	assert.Equal(t, []int64{2, 1, 1}, []int64{n, seq, votes}, "only the named counter moves")
}

func TestEntityService_InsertFailureRestoresAllCounters(t *testing.T) {
	boom := errors.New("disk full")
	txm := tx.Func(func(context.Context, func(ctx context.Context) error) error {
		return boom
	})
	svc, schema := newIssueService(t, &sequence.MockStore{}, txm)

	doc := newDoc(t, schema, map[string]any{"team": "red"})
	require.ErrorIs(t, svc.Create(context.Background(), doc), boom)

	for _, field := range []string{"id", "team_seq", "votes"} {
		_, ok := doc.Get(field)
		assert.False(t, ok, field)
	}
	v, _ := doc.Get("team")
	assert.Equal(t, "red", v)
}

func TestEntityService_ConcurrentCreates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := entity.NewMapDocument(mainSchema, nil)
			if !assert.NoError(t, err) {
				return
			}
			if !assert.NoError(t, f.svc.Create(ctx, doc)) {
				return
			}
			v, _ := doc.Get("id")
			_, dup := seen.LoadOrStore(v, true)
			assert.False(t, dup, "value %v assigned twice", v)
		}()
	}
	wg.Wait()
	assert.Equal(t, n, f.repo.Len())
}

func TestEntityService_CreateTwice(t *testing.T) {
	f := newFixture(t, nil)
	doc := newDoc(t, mainSchema, nil)
	require.NoError(t, f.svc.Create(context.Background(), doc))

	err := f.svc.Create(context.Background(), doc)
	assert.True(t, apperror.IsAppError(err))
}

func TestEntityService_UpdateConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := newDoc(t, mainSchema, nil)
	require.NoError(t, f.svc.Create(ctx, doc))

	stale, err := f.svc.Get(ctx, mainSchema, doc.Key())
	require.NoError(t, err)

	require.NoError(t, f.svc.Update(ctx, doc))
	err = f.svc.Update(ctx, stale)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestEntityService_GetNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Get(context.Background(), mainSchema, newDoc(t, mainSchema, nil).Key())
	assert.True(t, apperror.IsNotFound(err))
}

func TestEntityService_WithoutCounters(t *testing.T) {
	svc := NewEntityService(EntityServiceConfig{Repo: memory.NewDocumentRepo()})
	doc := newDoc(t, mainSchema, nil)

	require.NoError(t, svc.Create(context.Background(), doc))
	_, ok := doc.Get("id")
	assert.False(t, ok)

	_, err := svc.SetNext(context.Background(), doc, "main_id")
	assert.True(t, apperror.IsConfiguration(err))
}

func TestHookRegistry_Order(t *testing.T) {
	hooks := NewHookRegistry[string]()
	var calls []string
	hooks.OnBeforeCreate(func(_ context.Context, s string) error {
		calls = append(calls, "first:"+s)
		return nil
	})
	hooks.OnBeforeCreate(func(context.Context, string) error { return errors.New("stop") })
	hooks.OnBeforeCreate(func(_ context.Context, s string) error {
		calls = append(calls, "third:"+s)
		return nil
	})

	err := hooks.RunBeforeCreate(context.Background(), "x")
	assert.EqualError(t, err, "stop")
	assert.Equal(t, []string{"first:x"}, calls)

	assert.NoError(t, hooks.RunAfterCreate(context.Background(), "x"), "no hooks registered")
}

func TestHookRegistry_EventsAreSeparate(t *testing.T) {
	hooks := NewHookRegistry[string]()
	var calls []HookEvent
	record := func(event HookEvent) Hook[string] {
		return func(context.Context, string) error {
			calls = append(calls, event)
			return nil
		}
	}
	hooks.OnBeforeCreate(record(BeforeCreate))
	hooks.OnAfterCreate(record(AfterCreate))
	hooks.OnBeforeUpdate(record(BeforeUpdate))
	hooks.OnAfterUpdate(record(AfterUpdate))

	ctx := context.Background()
	require.NoError(t, hooks.RunBeforeUpdate(ctx, "x"))
	require.NoError(t, hooks.RunAfterUpdate(ctx, "x"))
	require.NoError(t, hooks.RunBeforeCreate(ctx, "x"))
	require.NoError(t, hooks.RunAfterCreate(ctx, "x"))

	assert.Equal(t, []HookEvent{BeforeUpdate, AfterUpdate, BeforeCreate, AfterCreate}, calls)
}
