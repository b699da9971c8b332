package geocode

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sprayDispatch/internal/logging"
)

// Searcher is the lookup an Autocompleter debounces.
type Searcher interface {
	Search(ctx context.Context, input string) ([]Suggestion, error)
}

// Result is the outcome of one Autocompleter lookup. Superseded is set when
// a newer lookup for the same key (or a Reset) replaced this one; its
// suggestions must then be ignored.
type Result struct {
	Suggestions []Suggestion `json:"suggestions"`
	Superseded  bool         `json:"superseded"`
}

type pending struct {
	seq    uint64
	cancel context.CancelFunc
}

// Autocompleter debounces keystroke lookups per key (one key per
// operator session) and lets only the latest one reach the provider.
// Provider failures degrade to an empty list.
type Autocompleter struct {
	search   Searcher
	debounce time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	seq      uint64
	inflight map[string]pending
}

func NewAutocompleter(s Searcher, debounce time.Duration, log *slog.Logger) *Autocompleter {
	return &Autocompleter{
		search:   s,
		debounce: debounce,
		log:      logging.OrDiscard(log),
		inflight: map[string]pending{},
	}
}

// Lookup waits for the debounce interval, then searches input unless a
// newer lookup for key arrived meanwhile.
func (a *Autocompleter) Lookup(ctx context.Context, key, input string) Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	if prev, ok := a.inflight[key]; ok {
		prev.cancel()
	}
	a.seq++
	seq := a.seq
	a.inflight[key] = pending{seq: seq, cancel: cancel}
	a.mu.Unlock()

	var (
		out []Suggestion
		err error
	)
	timer := time.NewTimer(a.debounce)
	select {
	case <-ctx.Done():
		timer.Stop()
		err = ctx.Err()
	case <-timer.C:
		out, err = a.search.Search(ctx, input)
	}

	if !a.finish(key, seq) {
		return Result{Suggestions: []Suggestion{}, Superseded: true}
	}
	if err != nil {
		logging.FromContext(ctx, a.log).Warn("places_lookup_failed",
			slog.String("input", input), slog.String("error", err.Error()))
		return Result{Suggestions: []Suggestion{}}
	}
	if out == nil {
		out = []Suggestion{}
	}
	return Result{Suggestions: out}
}

// Reset drops any pending lookup for key, e.g. when the picker closes.
func (a *Autocompleter) Reset(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.inflight[key]; ok {
		p.cancel()
		delete(a.inflight, key)
	}
}

// finish reports whether seq is still the latest lookup for key and clears it.
func (a *Autocompleter) finish(key string, seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.inflight[key]
	if !ok || cur.seq != seq {
		return false
	}
	delete(a.inflight, key)
	return true
}
