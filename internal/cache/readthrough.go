package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/docupicks/internal/model"
)

// ErrUnavailable はキャッシュ、パイプライン、推薦作品のいずれからも結果を得られない場合のエラー。
var ErrUnavailable = errors.New("cache: no documentaries available")

// ErrRefreshFailed はパイプラインの実行が結果を返さなかった場合のエラー。
var ErrRefreshFailed = errors.New("cache: pipeline produced no documentaries")

// Source は結果の取得元を表す。
type Source string

const (
	SourceCache    Source = "cache"
	SourcePipeline Source = "pipeline"
	SourceStale    Source = "stale"
	SourceFallback Source = "fallback"
)

// Runner はドキュメンタリー一覧を生成する。*pipeline.Pipelineが実装する。
type Runner interface {
	Run(ctx context.Context) ([]model.Documentary, error)
	FetchFallback(ctx context.Context) []model.Documentary
	FallbackTitles() []string
}

// Recorder はキャッシュの参照結果を受け取る。
type Recorder interface {
	IncCacheLookup(result string)
}

type nopRecorder struct{}

func (nopRecorder) IncCacheLookup(string) {}

// Result はドキュメンタリー一覧とその取得元。
type Result struct {
	Key           string
	Source        Source
	Documentaries []model.Documentary
}

// ReadThroughOptions はReadThroughの生成オプション。
type ReadThroughOptions struct {
	Prefix       string
	SingleFlight bool
	Recorder     Recorder
	Logger       *slog.Logger
}

// ReadThrough はキャッシュを優先して参照し、無ければパイプラインを実行して結果を保存する。
type ReadThrough struct {
	gateway      *Gateway
	runner       Runner
	prefix       string
	singleFlight bool
	group        singleflight.Group
	recorder     Recorder
	logger       *slog.Logger
	now          func() time.Time
}

// NewReadThrough はReadThroughを生成する。
func NewReadThrough(gateway *Gateway, runner Runner, opts ReadThroughOptions) *ReadThrough {
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ReadThrough{
		gateway:      gateway,
		runner:       runner,
		prefix:       opts.Prefix,
		singleFlight: opts.SingleFlight,
		recorder:     opts.Recorder,
		logger:       opts.Logger,
		now:          time.Now,
	}
}

// CurrentKey は現在時刻の日付キーを返す。
func (rt *ReadThrough) CurrentKey() string {
	return DailyKey(rt.prefix, rt.now())
}

// Documentaries は当日のドキュメンタリー一覧を返す。
// キャッシュにあれば保存されたペイロードをそのまま返す。
// 無ければパイプラインを実行して保存する。パイプラインが結果を返さない場合は
// 前回の結果、推薦作品、推薦作品のタイトルの順に代替する。
func (rt *ReadThrough) Documentaries(ctx context.Context) (*Result, error) {
	key := rt.CurrentKey()
	if res, ok := rt.lookup(ctx, key); ok {
		return res, nil
	}

	if !rt.singleFlight {
		return rt.refresh(ctx, key)
	}

	// 先行するリクエストのキャンセルが後続に波及しないようにする
	v, err, shared := rt.group.Do(key, func() (any, error) {
		return rt.refresh(context.WithoutCancel(ctx), key)
	})
	if shared {
		rt.logger.Debug("実行中のパイプラインの結果を共有しました", slog.String("cache_key", key))
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Warm は当日のキーにエントリが無い場合にパイプラインを実行して保存する。
// 代替処理は行わず、パイプラインが結果を返さない場合はErrRefreshFailedを返す。
func (rt *ReadThrough) Warm(ctx context.Context) (*Result, error) {
	key := rt.CurrentKey()
	if res, ok := rt.lookup(ctx, key); ok {
		return res, nil
	}

	docs, err := rt.runner.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("パイプラインの実行に失敗しました: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrRefreshFailed
	}
	rt.store(ctx, key, docs)
	return &Result{Key: key, Source: SourcePipeline, Documentaries: docs}, nil
}

func (rt *ReadThrough) lookup(ctx context.Context, key string) (*Result, bool) {
	entry, err := rt.gateway.Get(ctx, key)
	if err == nil {
		rt.recorder.IncCacheLookup("hit")
		return &Result{Key: key, Source: SourceCache, Documentaries: entry.Payload}, true
	}
	if !errors.Is(err, ErrMiss) {
		rt.recorder.IncCacheLookup("error")
		rt.logger.Error("キャッシュの参照に失敗しました",
			slog.String("cache_key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	rt.recorder.IncCacheLookup("miss")
	return nil, false
}

func (rt *ReadThrough) refresh(ctx context.Context, key string) (*Result, error) {
	docs, err := rt.runner.Run(ctx)
	if err == nil && len(docs) > 0 {
		rt.store(ctx, key, docs)
		return &Result{Key: key, Source: SourcePipeline, Documentaries: docs}, nil
	}

	if err != nil {
		rt.logger.Error("パイプラインの実行に失敗しました",
			slog.String("cache_key", key),
			slog.String("error", err.Error()),
		)
	} else {
		rt.logger.Warn("パイプラインが結果を返しませんでした", slog.String("cache_key", key))
	}
	return rt.degrade(ctx, key)
}

// degrade はパイプラインが失敗した場合の代替結果を返す。当日のキーには保存しない。
func (rt *ReadThrough) degrade(ctx context.Context, key string) (*Result, error) {
	if entry, err := rt.gateway.Get(ctx, StaleKey(rt.prefix)); err == nil && len(entry.Payload) > 0 {
		rt.recorder.IncCacheLookup("stale")
		rt.logger.Info("前回の結果で代替します",
			slog.String("cache_key", key),
			slog.Int("result_count", len(entry.Payload)),
		)
		return &Result{Key: key, Source: SourceStale, Documentaries: entry.Payload}, nil
	}

	if ctx.Err() == nil {
		if docs := rt.runner.FetchFallback(ctx); len(docs) > 0 {
			rt.recorder.IncCacheLookup("fallback")
			rt.logger.Info("推薦作品で代替します",
				slog.String("cache_key", key),
				slog.Int("result_count", len(docs)),
			)
			return &Result{Key: key, Source: SourceFallback, Documentaries: docs}, nil
		}
	}

	titles := rt.runner.FallbackTitles()
	if len(titles) == 0 {
		return nil, ErrUnavailable
	}
	rt.recorder.IncCacheLookup("fallback")
	rt.logger.Warn("推薦作品のタイトルのみで代替します",
		slog.String("cache_key", key),
		slog.Int("result_count", len(titles)),
	)
	return &Result{Key: key, Source: SourceFallback, Documentaries: bareDocumentaries(titles)}, nil
}

func (rt *ReadThrough) store(ctx context.Context, key string, docs []model.Documentary) {
	if _, err := rt.gateway.Put(ctx, key, docs); err != nil {
		rt.logger.Error("キャッシュの保存に失敗しました",
			slog.String("cache_key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := rt.gateway.PutStale(ctx, StaleKey(rt.prefix), docs); err != nil {
		rt.logger.Warn("前回結果の保存に失敗しました",
			slog.String("cache_key", StaleKey(rt.prefix)),
			slog.String("error", err.Error()),
		)
	}
}

// bareDocumentaries はタイトルのみのDocumentaryを生成する。
func bareDocumentaries(titles []string) []model.Documentary {
	docs := make([]model.Documentary, 0, len(titles))
	for _, t := range titles {
		docs = append(docs, model.Documentary{
			Title:          t,
			Rating:         model.NotAvailable,
			Poster:         model.PlaceholderPoster,
			WatchProviders: []model.StreamingProvider{},
		})
	}
	return docs
}
