package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"honestlens/config"
	"honestlens/types"
)

const testFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>checks</title>
<item><title>Fake: vaccines contain microchips</title><link>https://checks.example/1</link><description>No evidence supports it.</description></item>
<item><title>Monsoon session dates announced</title><link>https://checks.example/2</link></item>
</channel></rss>`

func feedServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestRenderResult(t *testing.T) {
	out := renderResult(
		&types.VerificationRequest{ID: "r1", Kind: types.KindText, Payload: "Breaking! forward this now"},
		&types.VerificationResult{
			TruthScore:       25,
			CredibilityLevel: types.NotCredible,
			ConfidenceScore:  70,
			Method:           types.MethodNormal,
			Flags:            []string{"contains sensational language"},
			SourcesChecked:   []types.SourceRef{{Name: "Alt News", SignalType: types.SignalCorroboration}},
		},
	)
	assert.Contains(t, out, "NOT CREDIBLE")
	assert.Contains(t, out, "truth 25/100")
	assert.Contains(t, out, "contains sensational language")
	assert.Contains(t, out, "Alt News (corroboration)")
}

func TestFeedsListsConfiguredFeeds(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.Config{FeedPresets: []string{"pib", "https://feeds.example/rss"}}
	defer func() { cfg = config.Config{} }()

	cmd, out := newTestCmd()
	require.NoError(t, runFeeds(cmd, nil))
	assert.Contains(t, out.String(), "PIB Fact Check [pib]")
	assert.Contains(t, out.String(), "https://feeds.example/rss")
	assert.Contains(t, out.String(), "presets: altnews, boom, factchecker, pib")
}

func TestFeedsSearch(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.Config{FeedPresets: []string{feedServer(t)}}
	defer func() { cfg = config.Config{} }()

	cmd, out := newTestCmd()
	require.NoError(t, runFeeds(cmd, []string{"vaccines", "contain", "microchips"}))
	assert.Contains(t, out.String(), "[false]")
	assert.Contains(t, out.String(), "Fake: vaccines contain microchips")
	assert.NotContains(t, out.String(), "Monsoon")
}

func TestVerifyText(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.Config{
		CollectorTimeout: 2 * time.Second,
		DedupCapacity:    10,
		UploadDir:        t.TempDir(),
		FeedPresets:      []string{feedServer(t)},
	}
	verifyText = "Breaking! Secret shocking truth they don't want you to know, forward this now!"
	verifyTimeout = 10 * time.Second
	verifyPriority = "medium"
	jsonOut = false
	defer func() {
		cfg = config.Config{}
		verifyText = ""
	}()

	cmd, out := newTestCmd()
	require.NoError(t, runVerify(cmd, nil))
	assert.Contains(t, out.String(), "truth 25/100")
	assert.Contains(t, out.String(), "NOT CREDIBLE")
}
