package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placesServer(t *testing.T, failDetailsFor string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/autocomplete/json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "country:in", r.URL.Query().Get("components"))
		if r.URL.Query().Get("input") == "nowhere" {
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","predictions":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","predictions":[
			{"description":"Moga, Punjab, India","place_id":"p1"},
			{"description":"Mogra, Punjab, India","place_id":"p2"}]}`))
	})
	mux.HandleFunc("/details/json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "geometry", r.URL.Query().Get("fields"))
		switch r.URL.Query().Get("place_id") {
		case failDetailsFor:
			w.WriteHeader(http.StatusInternalServerError)
		case "p1":
			_, _ = w.Write([]byte(`{"status":"OK","result":{"geometry":{"location":{"lat":30.8162,"lng":75.1741}}}}`))
		default:
			_, _ = w.Write([]byte(`{"status":"OK","result":{"geometry":{"location":{"lat":30.5,"lng":75.5}}}}`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSearch_ReturnsSuggestionsWithCoordinates(t *testing.T) {
	srv, _ := placesServer(t, "")
	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("test-key"), WithHTTPClient(srv.Client()))

	got, err := c.Search(context.Background(), "Mog")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Moga, Punjab, India", got[0].Description)
	require.NotNil(t, got[0].Location)
	assert.Equal(t, 30.8162, got[0].Location.Latitude)
	assert.Equal(t, "p2", got[1].PlaceID)
}

func TestSearch_DetailsFailureLeavesLocationEmpty(t *testing.T) {
	srv, _ := placesServer(t, "p2")
	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("test-key"))

	got, err := c.Search(context.Background(), "Mog")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotNil(t, got[0].Location)
	assert.Nil(t, got[1].Location)
}

func TestSearch_EmptyInputOrKeySkipsNetwork(t *testing.T) {
	srv, calls := placesServer(t, "")
	withKey := NewClient(WithBaseURL(srv.URL), WithAPIKey("test-key"))
	noKey := NewClient(WithBaseURL(srv.URL))

	got, err := withKey.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = noKey.Search(context.Background(), "Moga")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, atomic.LoadInt32(calls))

	got, err = withKey.Search(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_ProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("input") == "denied" {
			_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("k"))

	_, err := c.Search(context.Background(), "Moga")
	assert.ErrorIs(t, err, ErrBadStatusCode)
	_, err = c.Search(context.Background(), "denied")
	assert.ErrorIs(t, err, ErrProviderStatus)
}

type fakeSearcher struct {
	mu     sync.Mutex
	inputs []string
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, input string) ([]Suggestion, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []Suggestion{{PlaceID: input, Description: input}}, nil
}

func TestAutocompleter_LatestWins(t *testing.T) {
	fs := &fakeSearcher{}
	a := NewAutocompleter(fs, 200*time.Millisecond, nil)

	first := make(chan Result, 1)
	go func() { first <- a.Lookup(context.Background(), "op", "Mo") }()
	time.Sleep(20 * time.Millisecond)
	second := a.Lookup(context.Background(), "op", "Moga")

	r1 := <-first
	assert.True(t, r1.Superseded)
	assert.Empty(t, r1.Suggestions)
	assert.False(t, second.Superseded)
	require.Len(t, second.Suggestions, 1)
	assert.Equal(t, "Moga", second.Suggestions[0].Description)
	assert.Equal(t, []string{"Moga"}, fs.inputs, "superseded lookups never reach the provider")
}

func TestAutocompleter_KeysAreIndependent(t *testing.T) {
	fs := &fakeSearcher{}
	a := NewAutocompleter(fs, 20*time.Millisecond, nil)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			results[i] = a.Lookup(context.Background(), key, key)
		}(i, key)
	}
	wg.Wait()
	for _, r := range results {
		assert.False(t, r.Superseded)
		assert.Len(t, r.Suggestions, 1)
	}
}

func TestAutocompleter_ResetAndFailures(t *testing.T) {
	fs := &fakeSearcher{}
	a := NewAutocompleter(fs, 200*time.Millisecond, nil)

	done := make(chan Result, 1)
	go func() { done <- a.Lookup(context.Background(), "op", "Mo") }()
	time.Sleep(20 * time.Millisecond)
	a.Reset("op")
	assert.True(t, (<-done).Superseded)

	failing := NewAutocompleter(&fakeSearcher{err: errors.New("offline")}, 0, nil)
	r := failing.Lookup(context.Background(), "op", "Moga")
	assert.False(t, r.Superseded)
	assert.NotNil(t, r.Suggestions)
	assert.Empty(t, r.Suggestions)
}
