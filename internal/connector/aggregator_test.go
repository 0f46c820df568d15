package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolradar/toolradar/internal/radar"
)

const listingFixture = `<!DOCTYPE html>
<html><body>
  <div class="tool-card">
    <h3 class="tool-name">FlowPilot</h3>
    <p class="tool-desc">Workflow automation assistant for busy teams</p>
    <a class="tool-link" href="/tool/flowpilot">Visit</a>
    <span class="tool-votes">87 upvotes</span>
  </div>
  <div class="tool-card">
    <h3 class="tool-name">Sourdough Diary</h3>
    <p class="tool-desc">My notes on baking bread</p>
    <a class="tool-link" href="/tool/sourdough">Visit</a>
    <span class="tool-votes">12 upvotes</span>
  </div>
  <div class="tool-card">
    <h3 class="tool-name">EchoLab</h3>
    <p class="tool-desc">Voice cloning platform with an API</p>
    <a class="tool-link" href="https://echolab.fm/">Visit</a>
  </div>
</body></html>`

func aggregatorConfig(url string) AggregatorConfig {
	return AggregatorConfig{
		Name:                "futurepedia",
		URL:                 url,
		ItemSelector:        "div.tool-card",
		NameSelector:        "h3.tool-name",
		DescriptionSelector: "p.tool-desc",
		LinkSelector:        "a.tool-link",
		VotesSelector:       "span.tool-votes",
	}
}

func TestAggregatorConnectorFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingFixture))
	}))
	defer srv.Close()

	c := NewAggregatorConnector(aggregatorConfig(srv.URL), fastTestRetry(), nil)
	candidates, err := c.Fetch(context.Background(), 10)
	require.NoError(t, err)

	// The bread journal never leaves the source.
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, "FlowPilot", first.Title)
	assert.Equal(t, "Workflow automation assistant for busy teams", first.Summary)
	// Relative links resolve against the listing page.
	assert.Equal(t, srv.URL+"/tool/flowpilot", first.Link)
	assert.Equal(t, 87, first.Votes)
	assert.True(t, first.VotesKnown)
	assert.Equal(t, "futurepedia", first.Source)

	second := candidates[1]
	assert.Equal(t, "EchoLab", second.Title)
	assert.Equal(t, "https://echolab.fm/", second.Link)
	assert.False(t, second.VotesKnown)
}

func TestAggregatorConnectorHonorsLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingFixture))
	}))
	defer srv.Close()

	c := NewAggregatorConnector(aggregatorConfig(srv.URL), fastTestRetry(), nil)
	candidates, err := c.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestAggregatorConnectorTransientFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAggregatorConnector(aggregatorConfig(srv.URL), fastTestRetry(), nil)
	_, err := c.Fetch(context.Background(), 10)

	var tfe *radar.TransientFetchError
	require.ErrorAs(t, err, &tfe)
	assert.Equal(t, "futurepedia", tfe.Source)
}
