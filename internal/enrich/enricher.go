package enrich

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/subman/internal/metrics"
	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/subscription"
)

// Enricher は作成入力にアイコンとブランドカラーを補完する。
// 入力済みの値は上書きしない。
type Enricher struct {
	fetcher *IconFetcher
	metrics metrics.MetricsCollector
}

var _ subscription.Enricher = (*Enricher)(nil)

// NewEnricher はEnricherを生成する。fetcherがnilの場合はWebサイトからの取得を行わず、
// 既知のサービスの表のみを使う。
func NewEnricher(fetcher *IconFetcher, m metrics.MetricsCollector) *Enricher {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Enricher{fetcher: fetcher, metrics: m}
}

// Enrich はinのIconとColorsを補完する。失敗しても処理は継続する。
// アイコンはWebサイトから取得した画像を優先し、取得できなければ既知のサービスの絵文字を使う。
func (e *Enricher) Enrich(ctx context.Context, in *model.NewSubscription) {
	known, isKnown := LookupKnownService(in.Name)
	if isKnown && len(in.Colors) == 0 {
		in.Colors = model.Colors{"Vibrant": known.Color}
	}
	if in.Icon != "" {
		return
	}

	if e.fetcher != nil && in.URL != "" {
		dataURL, err := e.fetcher.FetchDataURL(ctx, in.URL)
		switch {
		case errors.Is(err, ErrURLRejected):
			e.metrics.RecordIconEnrichment(metrics.IconResultRejected)
		case dataURL != "":
			in.Icon = dataURL
			e.metrics.RecordIconEnrichment(metrics.IconResultFetched)
			return
		default:
			slog.Warn("icon not found", slog.String("url", in.URL), slog.String("name", in.Name))
			if !isKnown {
				e.metrics.RecordIconEnrichment(metrics.IconResultNotFound)
			}
		}
	}

	if isKnown {
		in.Icon = known.Icon
		e.metrics.RecordIconEnrichment(metrics.IconResultKnownService)
	}
}
