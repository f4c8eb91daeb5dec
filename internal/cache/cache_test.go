package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/docupicks/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// memStore はStoreのインメモリ実装。
type memStore struct {
	mu        sync.Mutex
	records   map[string]*model.CacheRecord
	putErrs   []error
	getErr    error
	putCalls  int
	clockFunc func() time.Time
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.CacheRecord), clockFunc: time.Now}
}

func (s *memStore) Get(_ context.Context, key string) (*model.CacheRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if rec.ExpiresAt != nil && !s.clockFunc().Before(*rec.ExpiresAt) {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (s *memStore) Put(_ context.Context, key string, data []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if len(s.putErrs) > 0 {
		err := s.putErrs[0]
		s.putErrs = s.putErrs[1:]
		if err != nil {
			return err
		}
	}
	rec := &model.CacheRecord{Key: key, Data: append([]byte(nil), data...), CreatedAt: time.Now()}
	if !expiresAt.IsZero() {
		rec.ExpiresAt = &expiresAt
	}
	s.records[key] = rec
	return nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	return ok
}

func (s *memStore) setRaw(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = &model.CacheRecord{Key: key, Data: data}
}

// stubRunner はRunnerのモック。
type stubRunner struct {
	runFn      func(ctx context.Context) ([]model.Documentary, error)
	fallback   []model.Documentary
	titles     []string
	runCalls   atomic.Int32
	fetchCalls atomic.Int32
}

func (r *stubRunner) Run(ctx context.Context) ([]model.Documentary, error) {
	r.runCalls.Add(1)
	if r.runFn != nil {
		return r.runFn(ctx)
	}
	return nil, nil
}

func (r *stubRunner) FetchFallback(context.Context) []model.Documentary {
	r.fetchCalls.Add(1)
	return r.fallback
}

func (r *stubRunner) FallbackTitles() []string {
	return r.titles
}

type lookupRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *lookupRecorder) IncCacheLookup(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = make(map[string]int)
	}
	r.results[result]++
}

func sampleDocs() []model.Documentary {
	return []model.Documentary{
		{
			ExternalID: "tt6264596", CatalogID: 440471, Title: "LA 92", Year: "2017", NormalizedYear: 2017,
			Genre: "Documentary, History", Plot: "Riots.", Rating: "7.9", Poster: "/placeholder.jpg",
			WatchProviders: []model.StreamingProvider{{ID: 8, Name: "Netflix", LogoPath: "/n.jpg"}},
		},
		{
			ExternalID: "tt5895028", Title: "13th", Year: "2016", Rating: "8.2",
			WatchProviders: []model.StreamingProvider{},
		},
	}
}

func newTestGateway(store Store, buf *bytes.Buffer) *Gateway {
	g := NewGateway(store, 24*time.Hour, newTestLogger(buf))
	g.retryDelay = time.Millisecond
	return g
}

func TestDailyKey(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	now := time.Date(2026, 10, 18, 1, 30, 0, 0, jst) // UTCでは10/17

	if got := DailyKey("DOCS", now); got != "DOCS-2026-10-17" {
		t.Errorf("DailyKey = %q, want DOCS-2026-10-17", got)
	}
	if got := StaleKey("DOCS"); got != "DOCS-latest" {
		t.Errorf("StaleKey = %q", got)
	}
}

func TestGateway_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGateway(newMemStore(), &buf)
	payload := sampleDocs()

	put, err := g.Put(context.Background(), "DOCS-2026-10-17", payload)
	if err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}
	got, err := g.Get(context.Background(), "DOCS-2026-10-17")
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if !reflect.DeepEqual(got.Payload, payload) {
		t.Errorf("payload = %+v, want %+v", got.Payload, payload)
	}
	if got.ExpiresAt != put.ExpiresAt {
		t.Errorf("ExpiresAt = %d, want %d", got.ExpiresAt, put.ExpiresAt)
	}
	if ttl := time.Until(time.Unix(got.ExpiresAt, 0)); ttl < 23*time.Hour || ttl > 24*time.Hour {
		t.Errorf("TTL = %v, want about 24h", ttl)
	}
}

func TestGateway_Get_Absent(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGateway(newMemStore(), &buf)

	if _, err := g.Get(context.Background(), "DOCS-2026-10-17"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}
}

func TestGateway_Get_CorruptPayloadIsMiss(t *testing.T) {
	store := newMemStore()
	store.setRaw("k", []byte(`{"not":"a list"`))
	var buf bytes.Buffer
	g := newTestGateway(store, &buf)

	_, err := g.Get(context.Background(), "k")
	if !errors.Is(err, ErrMiss) || !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrMiss and ErrCorrupt", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("cache_key")) {
		t.Error("破損がログに記録されるべき")
	}
}

func TestGateway_Get_ExpiredIsMiss(t *testing.T) {
	store := newMemStore()
	var buf bytes.Buffer
	g := newTestGateway(store, &buf)
	if _, err := g.Put(context.Background(), "k", sampleDocs()); err != nil {
		t.Fatal(err)
	}

	g.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := g.Get(context.Background(), "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}
}

func TestGateway_Get_StoreErrorIsNotMiss(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	var buf bytes.Buffer
	g := newTestGateway(store, &buf)

	_, err := g.Get(context.Background(), "k")
	if err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want store error", err)
	}
}

func TestGateway_Put_RetriesTransientErrors(t *testing.T) {
	store := newMemStore()
	store.putErrs = []error{errors.New("timeout"), errors.New("timeout")}
	var buf bytes.Buffer
	g := newTestGateway(store, &buf)

	if _, err := g.Put(context.Background(), "k", sampleDocs()); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}
	if store.putCalls != 3 {
		t.Errorf("putCalls = %d, want 3", store.putCalls)
	}
}

func TestGateway_Put_GivesUp(t *testing.T) {
	store := newMemStore()
	store.putErrs = []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}
	var buf bytes.Buffer
	g := newTestGateway(store, &buf)

	if _, err := g.Put(context.Background(), "k", sampleDocs()); err == nil {
		t.Fatal("再試行上限を超えた場合はエラーを返すべき")
	}
	if store.putCalls != 3 {
		t.Errorf("putCalls = %d, want 3", store.putCalls)
	}
}

func TestGateway_PutStale_NoExpiry(t *testing.T) {
	store := newMemStore()
	var buf bytes.Buffer
	g := newTestGateway(store, &buf)

	if err := g.PutStale(context.Background(), "DOCS-latest", sampleDocs()); err != nil {
		t.Fatal(err)
	}
	entry, err := g.Get(context.Background(), "DOCS-latest")
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if entry.ExpiresAt != 0 {
		t.Errorf("ExpiresAt = %d, want 0", entry.ExpiresAt)
	}
}

func newTestReadThrough(store Store, runner Runner, singleFlight bool, rec Recorder, buf *bytes.Buffer) *ReadThrough {
	return NewReadThrough(newTestGateway(store, buf), runner, ReadThroughOptions{
		Prefix:       "DOCS",
		SingleFlight: singleFlight,
		Recorder:     rec,
		Logger:       newTestLogger(buf),
	})
}

func TestReadThrough_Hit_SkipsPipeline(t *testing.T) {
	store := newMemStore()
	var buf bytes.Buffer
	runner := &stubRunner{runFn: func(context.Context) ([]model.Documentary, error) {
		t.Error("キャッシュヒット時にパイプラインを実行してはならない")
		return nil, nil
	}}
	rec := &lookupRecorder{}
	rt := newTestReadThrough(store, runner, true, rec, &buf)
	cached := sampleDocs()
	// 並び順が評価順でなくても再ソートせずにそのまま返す
	cached[0], cached[1] = cached[1], cached[0]
	if _, err := rt.gateway.Put(context.Background(), rt.CurrentKey(), cached); err != nil {
		t.Fatal(err)
	}

	res, err := rt.Documentaries(context.Background())
	if err != nil {
		t.Fatalf("Documentaries がエラーを返した: %v", err)
	}
	if res.Source != SourceCache {
		t.Errorf("Source = %s, want cache", res.Source)
	}
	if !reflect.DeepEqual(res.Documentaries, cached) {
		t.Errorf("キャッシュの内容がそのまま返されるべき: %+v", res.Documentaries)
	}
	if runner.runCalls.Load() != 0 {
		t.Errorf("runCalls = %d, want 0", runner.runCalls.Load())
	}
	if rec.results["hit"] != 1 {
		t.Errorf("lookups = %v", rec.results)
	}
}

func TestReadThrough_Miss_RunsAndStores(t *testing.T) {
	store := newMemStore()
	var buf bytes.Buffer
	runner := &stubRunner{runFn: func(context.Context) ([]model.Documentary, error) {
		return sampleDocs(), nil
	}}
	rt := newTestReadThrough(store, runner, false, nil, &buf)

	res, err := rt.Documentaries(context.Background())
	if err != nil {
		t.Fatalf("Documentaries がエラーを返した: %v", err)
	}
	if res.Source != SourcePipeline || res.Key != rt.CurrentKey() {
		t.Errorf("result = %+v", res)
	}
	if !store.has(rt.CurrentKey()) || !store.has("DOCS-latest") {
		t.Error("当日のキーと前回結果のキーが保存されるべき")
	}

	res, err = rt.Documentaries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceCache || runner.runCalls.Load() != 1 {
		t.Errorf("2回目はキャッシュから返すべき: source=%s runs=%d", res.Source, runner.runCalls.Load())
	}
}

func TestReadThrough_FailedRun_LeavesKeyAbsent_UsesStale(t *testing.T) {
	store := newMemStore()
	var buf bytes.Buffer
	runner := &stubRunner{runFn: func(context.Context) ([]model.Documentary, error) {
		return nil, nil
	}}
	rt := newTestReadThrough(store, runner, false, nil, &buf)
	if err := rt.gateway.PutStale(context.Background(), "DOCS-latest", sampleDocs()); err != nil {
		t.Fatal(err)
	}

	res, err := rt.Documentaries(context.Background())
	if err != nil {
		t.Fatalf("Documentaries がエラーを返した: %v", err)
	}
	if res.Source != SourceStale || len(res.Documentaries) != 2 {
		t.Errorf("result = %+v", res)
	}
	if store.has(rt.CurrentKey()) {
		t.Error("失敗した場合は当日のキーを保存してはならない")
	}

	rt.Documentaries(context.Background())
	if runner.runCalls.Load() != 2 {
		t.Errorf("失敗後はリクエストごとに再実行するべき: runs=%d", runner.runCalls.Load())
	}
}

func TestReadThrough_FallbackChain(t *testing.T) {
	failing := func(context.Context) ([]model.Documentary, error) {
		return nil, errors.New("boom")
	}

	t.Run("推薦作品", func(t *testing.T) {
		var buf bytes.Buffer
		runner := &stubRunner{runFn: failing, fallback: sampleDocs()[:1], titles: []string{"LA 92"}}
		rt := newTestReadThrough(newMemStore(), runner, false, nil, &buf)

		res, err := rt.Documentaries(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if res.Source != SourceFallback || res.Documentaries[0].ExternalID != "tt6264596" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("タイトルのみ", func(t *testing.T) {
		var buf bytes.Buffer
		runner := &stubRunner{runFn: failing, titles: []string{"LA 92", "13th"}}
		rt := newTestReadThrough(newMemStore(), runner, false, nil, &buf)

		res, err := rt.Documentaries(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if res.Source != SourceFallback || len(res.Documentaries) != 2 {
			t.Fatalf("result = %+v", res)
		}
		d := res.Documentaries[1]
		if d.Title != "13th" || d.Rating != model.NotAvailable || d.Poster != model.PlaceholderPoster {
			t.Errorf("doc = %+v", d)
		}
	})

	t.Run("何も無い", func(t *testing.T) {
		var buf bytes.Buffer
		rt := newTestReadThrough(newMemStore(), &stubRunner{runFn: failing}, false, nil, &buf)

		if _, err := rt.Documentaries(context.Background()); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("err = %v, want ErrUnavailable", err)
		}
	})
}

func TestReadThrough_StoreDown_StillServesPipeline(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.putErrs = []error{errors.New("x"), errors.New("x"), errors.New("x")}
	var buf bytes.Buffer
	runner := &stubRunner{runFn: func(context.Context) ([]model.Documentary, error) {
		return sampleDocs(), nil
	}}
	rec := &lookupRecorder{}
	rt := newTestReadThrough(store, runner, false, rec, &buf)

	res, err := rt.Documentaries(context.Background())
	if err != nil {
		t.Fatalf("Documentaries がエラーを返した: %v", err)
	}
	if res.Source != SourcePipeline {
		t.Errorf("Source = %s", res.Source)
	}
	if rec.results["error"] != 1 {
		t.Errorf("lookups = %v", rec.results)
	}
}

func TestReadThrough_SingleFlight_CollapsesConcurrentMisses(t *testing.T) {
	store := newMemStore()
	var buf bytes.Buffer
	release := make(chan struct{})
	runner := &stubRunner{runFn: func(context.Context) ([]model.Documentary, error) {
		<-release
		return sampleDocs(), nil
	}}
	rt := newTestReadThrough(store, runner, true, nil, &buf)

	const callers = 10
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	results := make([]*Result, callers)
	for i := range callers {
		go func() {
			defer done.Done()
			started.Done()
			res, err := rt.Documentaries(context.Background())
			if err != nil {
				t.Errorf("Documentaries がエラーを返した: %v", err)
			}
			results[i] = res
		}()
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	if n := runner.runCalls.Load(); n != 1 {
		t.Errorf("runCalls = %d, want 1", n)
	}
	for i, res := range results {
		if res == nil || len(res.Documentaries) != 2 {
			t.Errorf("results[%d] = %+v", i, res)
		}
	}
}

func TestReadThrough_Warm(t *testing.T) {
	store := newMemStore()
	var buf bytes.Buffer
	var docs []model.Documentary
	runner := &stubRunner{runFn: func(context.Context) ([]model.Documentary, error) {
		return docs, nil
	}}
	rt := newTestReadThrough(store, runner, true, nil, &buf)

	if _, err := rt.Warm(context.Background()); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("err = %v, want ErrRefreshFailed", err)
	}
	if runner.fetchCalls.Load() != 0 {
		t.Error("Warm は代替処理を行わないべき")
	}

	docs = sampleDocs()
	res, err := rt.Warm(context.Background())
	if err != nil || res.Source != SourcePipeline {
		t.Fatalf("res = %+v, err = %v", res, err)
	}

	res, err = rt.Warm(context.Background())
	if err != nil || res.Source != SourceCache {
		t.Fatalf("既に保存済みの場合はキャッシュを返すべき: res = %+v, err = %v", res, err)
	}
	if runner.runCalls.Load() != 2 {
		t.Errorf("runCalls = %d, want 2", runner.runCalls.Load())
	}
}
