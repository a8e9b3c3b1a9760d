// Package enrich runs the enrichment stage: for every unit in the book tree
// it calls the text-enrichment service and then the image service, under
// bounded concurrency, with retries for transient failures and a cache in
// front of every external call. A unit that fails terminally is recorded in
// the manifest and left for the renderer to placeholder; it never aborts the
// run.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/breakingbooks/bookdeck/internal/book"
	"github.com/breakingbooks/bookdeck/internal/cache"
	"github.com/breakingbooks/bookdeck/internal/providers"
)

// Image slot dimensions per unit kind. Chapters get a wide card banner,
// sections a portrait-ish panel for the divider card.
const (
	ChapterImageWidth  = 768
	ChapterImageHeight = 384
	SectionImageWidth  = 384
	SectionImageHeight = 640
)

// stylePrompt is appended to every generated illustration description so the
// deck has one visual voice.
const stylePrompt = "Colorful flat illustration, clean shapes, soft gradients, storybook style."

// Config holds orchestrator settings. Zero values get defaults in New.
type Config struct {
	Workers        int
	Attempts       uint
	RetryBaseDelay time.Duration
	RetryMaxJitter time.Duration
	MaxQuotes      int
	SkipImages     bool
	Logger         *slog.Logger
}

// Orchestrator fans enrichment work out over a fixed worker pool.
type Orchestrator struct {
	text  providers.EnrichmentClient
	image providers.ImageClient
	store *cache.Store
	cfg   Config
	log   *slog.Logger
}

// New creates an Orchestrator.
func New(text providers.EnrichmentClient, image providers.ImageClient, store *cache.Store, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.RetryMaxJitter <= 0 {
		cfg.RetryMaxJitter = 500 * time.Millisecond
	}
	if cfg.MaxQuotes <= 0 {
		cfg.MaxQuotes = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		text:  text,
		image: image,
		store: store,
		cfg:   cfg,
		log:   logger.With("component", "orchestrator"),
	}
}

// UnitFailure records one unit's terminal failure for the run manifest.
type UnitFailure struct {
	UnitID  string               `json:"unit_id" yaml:"unit_id"`
	Stage   string               `json:"stage" yaml:"stage"`
	Class   providers.ErrorClass `json:"class" yaml:"class"`
	Message string               `json:"message" yaml:"message"`
}

// Manifest summarizes an enrichment run.
type Manifest struct {
	Failed []UnitFailure `json:"failed" yaml:"failed"`

	TextCacheHits  int     `json:"text_cache_hits" yaml:"text_cache_hits"`
	ImageCacheHits int     `json:"image_cache_hits" yaml:"image_cache_hits"`
	CostUSD        float64 `json:"cost_usd" yaml:"cost_usd"`
}

// manifestState guards the manifest during the run. Tree fields need no
// lock: each is written by exactly one unit's task.
type manifestState struct {
	mu sync.Mutex
	m  Manifest
}

func (ms *manifestState) fail(f UnitFailure) {
	ms.mu.Lock()
	ms.m.Failed = append(ms.m.Failed, f)
	ms.mu.Unlock()
}

func (ms *manifestState) account(cost float64, textHit, imageHit bool) {
	ms.mu.Lock()
	ms.m.CostUSD += cost
	if textHit {
		ms.m.TextCacheHits++
	}
	if imageHit {
		ms.m.ImageCacheHits++
	}
	ms.mu.Unlock()
}

// Run enriches every unit of the book in place and returns the manifest.
// It blocks until all units reach a terminal state. The returned error is
// non-nil only when the context is cancelled; per-unit failures live in the
// manifest.
func (o *Orchestrator) Run(ctx context.Context, b *book.Book) (*Manifest, error) {
	units := b.Units()
	jobs := make(chan book.UnitRef)
	state := &manifestState{}

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				o.processUnit(ctx, b, ref, state)
			}
		}()
	}

	for _, ref := range units {
		select {
		case jobs <- ref:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	o.log.Info("enrichment run complete",
		"units", len(units),
		"failed", len(state.m.Failed),
		"cost_usd", fmt.Sprintf("%.4f", state.m.CostUSD))

	return &state.m, ctx.Err()
}

// processUnit runs the two tasks of one unit strictly in order: text
// enrichment first, then illustration only after the text task succeeded.
func (o *Orchestrator) processUnit(ctx context.Context, b *book.Book, ref book.UnitRef, state *manifestState) {
	unitID := b.UnitID(ref)
	log := o.log.With("unit", unitID)

	result, textHit, err := o.enrichText(ctx, b, ref, unitID)
	if err != nil {
		class := providers.ClassOf(err)
		log.Warn("text enrichment failed", "class", class, "error", err)
		o.markText(b, ref, func(a *book.GeneratedAsset) { a.MarkFailed(err.Error()) })
		state.fail(UnitFailure{
			UnitID:  unitID,
			Stage:   string(book.AssetText),
			Class:   class,
			Message: err.Error(),
		})
		return
	}

	o.applyText(b, ref, result)
	state.account(result.CostUSD, textHit, false)

	if o.cfg.SkipImages {
		return
	}
	if result.Illustration == "" {
		log.Warn("enrichment produced no illustration prompt")
		return
	}

	img, imageHit, err := o.generateImage(ctx, b, ref, unitID, result.Illustration)
	if err != nil {
		class := providers.ClassOf(err)
		log.Warn("illustration failed", "class", class, "error", err)
		o.markVisual(b, ref, func(a *book.GeneratedAsset) { a.MarkFailed(err.Error()) })
		state.fail(UnitFailure{
			UnitID:  unitID,
			Stage:   string(book.AssetImage),
			Class:   class,
			Message: err.Error(),
		})
		return
	}

	o.applyImage(b, ref, img)
	state.account(img.CostUSD, false, imageHit)
}

// enrichText runs the cached, retried text-enrichment call for one unit.
func (o *Orchestrator) enrichText(ctx context.Context, b *book.Book, ref book.UnitRef, unitID string) (*providers.EnrichmentResult, bool, error) {
	raw := o.rawText(b, ref)
	key := cache.Key("enrich", o.text.Name(), string(ref.Kind), raw)
	o.markText(b, ref, func(a *book.GeneratedAsset) {
		a.Kind = book.AssetText
		a.UnitID = unitID
		a.CacheKey = key
		a.Status = book.StatusPending
	})

	data, hit, err := o.store.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		result, err := withRetry(ctx, o.cfg, func(ctx context.Context) (*providers.EnrichmentResult, error) {
			return o.text.EnrichUnit(ctx, &providers.EnrichmentRequest{
				RawText:   raw,
				UnitKind:  string(ref.Kind),
				MaxQuotes: o.cfg.MaxQuotes,
				RequestID: unitID,
			})
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		return nil, false, err
	}

	var result providers.EnrichmentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, &providers.EnrichmentError{
			Class:   providers.ClassUnknown,
			Message: "corrupt cached enrichment entry",
			Err:     err,
		}
	}
	return &result, hit, nil
}

// imageCacheEntry is the on-disk shape of a cached illustration.
type imageCacheEntry struct {
	Format string `json:"format"`
	Data   []byte `json:"data"`
}

// generateImage runs the cached, retried illustration call for one unit.
func (o *Orchestrator) generateImage(ctx context.Context, b *book.Book, ref book.UnitRef, unitID, prompt string) (*providers.ImageResult, bool, error) {
	width, height := ChapterImageWidth, ChapterImageHeight
	if ref.Kind == book.UnitSection {
		width, height = SectionImageWidth, SectionImageHeight
	}
	fullPrompt := prompt + " " + stylePrompt

	key := cache.Key("image", o.image.Name(), fullPrompt, fmt.Sprintf("%dx%d", width, height))
	o.markVisual(b, ref, func(a *book.GeneratedAsset) {
		a.Kind = book.AssetImage
		a.UnitID = unitID
		a.CacheKey = key
		a.Status = book.StatusPending
	})

	data, hit, err := o.store.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		result, err := withRetry(ctx, o.cfg, func(ctx context.Context) (*providers.ImageResult, error) {
			return o.image.GenerateImage(ctx, &providers.ImageRequest{
				Prompt:    fullPrompt,
				Width:     width,
				Height:    height,
				RequestID: unitID,
			})
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(imageCacheEntry{Format: result.Format, Data: result.Data})
	})
	if err != nil {
		return nil, false, err
	}

	var entry imageCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, &providers.IllustrationError{
			Class:   providers.ClassUnknown,
			Message: "corrupt cached image entry",
			Err:     err,
		}
	}
	return &providers.ImageResult{Data: entry.Data, Format: entry.Format}, hit, nil
}

// withRetry retries transient failures. The delay honors a server-requested
// Retry-After when the error carries one, otherwise exponential backoff with
// jitter. Non-transient failures return immediately.
func withRetry[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoWithData(
		func() (T, error) { return fn(ctx) },
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.RetryBaseDelay),
		retry.MaxJitter(cfg.RetryMaxJitter),
		retry.DelayType(retryDelay),
		retry.RetryIf(providers.IsTransient),
		retry.LastErrorOnly(true),
	)
}

// retryDelay prefers the delay the provider asked for over computed backoff.
func retryDelay(n uint, err error, config *retry.Config) time.Duration {
	if ra := providers.RetryAfterOf(err); ra > 0 {
		return ra
	}
	return retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)(n, err, config)
}

func (o *Orchestrator) rawText(b *book.Book, ref book.UnitRef) string {
	if ref.Kind == book.UnitSection {
		return b.SectionAt(ref).Raw
	}
	return b.ChapterAt(ref).Raw
}

func (o *Orchestrator) markText(b *book.Book, ref book.UnitRef, fn func(*book.GeneratedAsset)) {
	if ref.Kind == book.UnitSection {
		fn(&b.SectionAt(ref).Text)
		return
	}
	fn(&b.ChapterAt(ref).Text)
}

func (o *Orchestrator) markVisual(b *book.Book, ref book.UnitRef, fn func(*book.GeneratedAsset)) {
	if ref.Kind == book.UnitSection {
		fn(&b.SectionAt(ref).Visual)
		return
	}
	fn(&b.ChapterAt(ref).Visual)
}

// applyText writes the enrichment result into the unit's content fields.
func (o *Orchestrator) applyText(b *book.Book, ref book.UnitRef, result *providers.EnrichmentResult) {
	if ref.Kind == book.UnitSection {
		sec := b.SectionAt(ref)
		sec.Title = result.Title
		sec.Introduction = result.Description
		sec.Illustration = result.Illustration
		sec.Text.MarkSucceeded()
		return
	}
	ch := b.ChapterAt(ref)
	ch.Title = result.Title
	ch.Description = result.Description
	ch.Quotes = result.Quotes
	ch.Comment = result.Comment
	ch.Illustration = result.Illustration
	ch.Text.MarkSucceeded()
}

// applyImage writes the illustration into the unit.
func (o *Orchestrator) applyImage(b *book.Book, ref book.UnitRef, img *providers.ImageResult) {
	if ref.Kind == book.UnitSection {
		sec := b.SectionAt(ref)
		sec.Image = img.Data
		sec.Visual.MarkSucceeded()
		return
	}
	ch := b.ChapterAt(ref)
	ch.Image = img.Data
	ch.Visual.MarkSucceeded()
}
