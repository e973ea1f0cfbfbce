package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"honestlens/corpus"
	"honestlens/orchestrator"
	"honestlens/persistence"
	"honestlens/signals"
	"honestlens/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const (
	sensationalText = "Breaking! Secret shocking truth they don't want you to know, forward this now!"
	officialText    = "According to the Ministry of Health, the government released 2.5 million doses on 12 March 2024. Officials said the programme covers 40 percent of districts."
)

type countingStore struct {
	*persistence.MemoryStore
	saves atomic.Int32
}

func (s *countingStore) SaveRequest(ctx context.Context, req *types.VerificationRequest) error {
	s.saves.Add(1)
	return s.MemoryStore.SaveRequest(ctx, req)
}

type fakeExtractor struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeExtractor) Fetch(_ context.Context, url string) (*types.Article, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Article{URL: url, ContentText: f.text}, nil
}

type emptyCorpus struct{}

func (emptyCorpus) Name() string { return "empty" }

func (emptyCorpus) Search(context.Context, string) ([]corpus.Match, error) { return nil, nil }

type slowCorpus struct{}

func (slowCorpus) Name() string { return "slow" }

func (slowCorpus) Search(ctx context.Context, _ string) ([]corpus.Match, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []*types.VerificationResult
}

func (p *recordingPublisher) PublishResult(_ context.Context, _ *types.VerificationRequest, res *types.VerificationResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

type fakeImages struct{ data []byte }

func (f fakeImages) Get(context.Context, string) ([]byte, error) { return f.data, nil }

func (f fakeImages) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("read only")
}

func pipeline(timeout time.Duration, cp corpus.Corpus) *orchestrator.Controller {
	o := orchestrator.New(timeout, nil,
		signals.NewContent(),
		signals.NewSource(),
		signals.NewCorroboration(nil, cp),
		signals.NewImageForensics(nil, nil),
	)
	return orchestrator.NewController(o, nil, nil, nil)
}

type harness struct {
	m         *Manager
	store     *countingStore
	extractor *fakeExtractor
	events    *recordingPublisher
}

func newHarness(t *testing.T, verifier Verifier) *harness {
	t.Helper()
	if verifier == nil {
		verifier = pipeline(time.Second, emptyCorpus{})
	}
	h := &harness{
		store:     &countingStore{MemoryStore: persistence.NewMemoryStore()},
		extractor: &fakeExtractor{text: officialText},
		events:    &recordingPublisher{},
	}
	h.m = NewManager(Deps{
		Store:     h.store,
		Verifier:  verifier,
		Extractor: h.extractor,
		Publisher: h.events,
	})
	t.Cleanup(h.m.Close)
	return h
}

func (h *harness) verify(t *testing.T, kind types.Kind, payload string) (*types.VerificationRequest, *types.VerificationResult) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, res, err := h.m.SubmitAndWait(ctx, kind, payload, "")
	require.NoError(t, err)
	return req, res
}

func TestSensationalTextScoresLow(t *testing.T) {
	h := newHarness(t, nil)
	req, res := h.verify(t, types.KindText, sensationalText)

	assert.Equal(t, types.StateCompleted, req.State)
	require.NotNil(t, res)
	assert.Less(t, res.TruthScore, 50)
	assert.Contains(t, []types.CredibilityLevel{types.LowCredibility, types.NotCredible}, res.CredibilityLevel)
	assert.Equal(t, types.MethodNormal, res.Method)
	assert.Contains(t, res.Flags, "contains sensational language")
	assert.Equal(t, types.PriorityMedium, req.Priority)
}

func TestTrustedURLScoresHigh(t *testing.T) {
	h := newHarness(t, nil)
	req, res := h.verify(t, types.KindURL, "https://pib.gov.in/PressReleasePage.aspx?PRID=1")

	require.NotNil(t, res)
	assert.GreaterOrEqual(t, res.TruthScore, 70)
	assert.Equal(t, 92, res.TruthScore)
	assert.Equal(t, 80, res.ConfidenceScore)
	var trusted bool
	for _, e := range res.Evidence {
		trusted = trusted || strings.HasPrefix(e, "trusted domain")
	}
	assert.True(t, trusted, "evidence %v", res.Evidence)
	assert.Equal(t, "https://pib.gov.in/PressReleasePage.aspx?PRID=1", req.DedupKey)
	assert.Equal(t, 1, h.events.count())
}

func TestNeutralTrustedPageIsMostlyCredible(t *testing.T) {
	const page = "https://pib.gov.in/PressReleasePage.aspx?PRID=2"

	h := newHarness(t, nil)
	h.extractor.text = "The committee met on Tuesday and discussed the routine agenda items with members present."
	_, res := h.verify(t, types.KindURL, page)
	require.NotNil(t, res)
	// content 60, source 90 over weights .40/.30
	assert.Equal(t, 73, res.TruthScore)
	assert.Equal(t, types.MostlyCredible, res.CredibilityLevel)

	h = newHarness(t, nil)
	h.extractor.err = errors.New("timeout")
	_, res = h.verify(t, types.KindURL, page)
	require.NotNil(t, res)
	assert.Equal(t, int32(1), h.extractor.calls.Load())
	assert.Equal(t, 73, res.TruthScore)
	assert.Equal(t, types.MostlyCredible, res.CredibilityLevel)
}

func TestSlowCorroborationIsLeftOut(t *testing.T) {
	h := newHarness(t, pipeline(50*time.Millisecond, slowCorpus{}))
	_, res := h.verify(t, types.KindURL, "https://pib.gov.in/story")

	require.NotNil(t, res)
	assert.Equal(t, types.MethodNormal, res.Method)
	assert.Equal(t, 80, res.ConfidenceScore)
	for _, src := range res.SourcesChecked {
		assert.NotEqual(t, types.SignalCorroboration, src.SignalType)
	}
}

type brokenGatherer struct{}

func (brokenGatherer) Collect(context.Context, signals.Input) ([]types.Signal, error) {
	return nil, types.ErrOrchestratorFailure
}

func TestCollectionFailureDegrades(t *testing.T) {
	h := newHarness(t, orchestrator.NewController(brokenGatherer{}, nil, nil, nil))
	req, res := h.verify(t, types.KindURL, "https://example.com/story")

	assert.Equal(t, types.StateCompleted, req.State)
	require.NotNil(t, res)
	assert.Equal(t, types.MethodDegraded, res.Method)
	assert.LessOrEqual(t, res.ConfidenceScore, 60)
	assert.Equal(t, int64(1), h.m.Stats().Degraded)
}

func TestInvalidInputCreatesNoRecord(t *testing.T) {
	h := newHarness(t, nil)
	cases := []struct {
		name     string
		kind     types.Kind
		payload  string
		priority types.Priority
	}{
		{"malformed url", types.KindURL, "not a url", ""},
		{"non-http url", types.KindURL, "ftp://files.example.com/a", ""},
		{"short text", types.KindText, "   too short   ", ""},
		{"long text", types.KindText, strings.Repeat("a", 10001), ""},
		{"empty image ref", types.KindImage, "  ", ""},
		{"unknown kind", types.Kind("video"), "https://example.com", ""},
		{"unknown priority", types.KindText, "a perfectly reasonable claim", "asap"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id, err := h.m.Submit(context.Background(), c.kind, c.payload, c.priority)
			assert.ErrorIs(t, err, types.ErrInvalidInput)
			assert.Empty(t, id)
		})
	}
	assert.Zero(t, h.store.saves.Load())
	assert.Zero(t, h.m.Stats().Submitted)
}

func TestTextLengthBoundaries(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.m.Submit(context.Background(), types.KindText, strings.Repeat("b", 10), "")
	assert.NoError(t, err)
	_, err = h.m.Submit(context.Background(), types.KindText, strings.Repeat("b", 10000), types.PriorityLow)
	assert.NoError(t, err)
	_, err = h.m.Submit(context.Background(), types.KindText, strings.Repeat("é", 9), "")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestURLSubmissionIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	first, res := h.verify(t, types.KindURL, "https://www.pib.gov.in/story/?utm_source=x")
	require.NotNil(t, res)

	for _, variant := range []string{
		"https://pib.gov.in/story",
		"https://PIB.gov.in:443/story/",
		"https://www.pib.gov.in/story?utm_campaign=y",
	} {
		id, err := h.m.Submit(context.Background(), types.KindURL, variant, types.PriorityHigh)
		require.NoError(t, err)
		assert.Equal(t, first.ID, id, variant)
	}
	assert.Equal(t, int32(1), h.extractor.calls.Load())
	assert.Equal(t, int32(1), h.store.saves.Load())
	assert.Equal(t, int64(3), h.m.Stats().Deduplicated)
}

func TestCompletedURLFoundInStoreAfterCacheMiss(t *testing.T) {
	h := newHarness(t, nil)
	first, _ := h.verify(t, types.KindURL, "https://pib.gov.in/a")

	// A second manager over the same store starts with an empty cache.
	other := NewManager(Deps{Store: h.store, Verifier: pipeline(time.Second, emptyCorpus{})})
	defer other.Close()
	id, err := other.Submit(context.Background(), types.KindURL, "https://pib.gov.in/a/", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)
}

type gatedVerifier struct {
	release chan struct{}
	calls   atomic.Int32
	next    Verifier
}

func (g *gatedVerifier) Run(ctx context.Context, req *types.VerificationRequest, in signals.Input) (*types.VerificationResult, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.next.Run(ctx, req, in)
}

func TestConcurrentURLSubmissionsJoinOneVerification(t *testing.T) {
	gate := &gatedVerifier{release: make(chan struct{}), next: pipeline(time.Second, emptyCorpus{})}
	h := newHarness(t, gate)

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := h.m.Submit(context.Background(), types.KindURL, "https://example.com/breaking", "")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	req, res, err := h.m.GetResult(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, types.StateProcessing, req.State)
	assert.Nil(t, res)

	close(gate.release)
	req, res, err = h.m.Wait(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, req.State)
	assert.NotNil(t, res)
	assert.Equal(t, int32(1), gate.calls.Load())
	assert.Equal(t, int32(1), h.store.saves.Load())
}

type failingVerifier struct{}

func (failingVerifier) Run(context.Context, *types.VerificationRequest, signals.Input) (*types.VerificationResult, error) {
	return nil, types.ErrDegradedFailure
}

func TestDegradedFailureMarksRequestFailed(t *testing.T) {
	h := newHarness(t, failingVerifier{})
	req, res := h.verify(t, types.KindURL, "https://example.com/x")

	assert.Equal(t, types.StateFailed, req.State)
	assert.Nil(t, res)
	assert.Zero(t, h.events.count())
	assert.Equal(t, int64(1), h.m.Stats().Failed)

	// Failed URLs are not cached, so a retry starts a new request.
	id, err := h.m.Submit(context.Background(), types.KindURL, "https://example.com/x", "")
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, id)
}

type failCompleteStore struct {
	*persistence.MemoryStore
}

func (failCompleteStore) Complete(context.Context, *types.VerificationResult, time.Time) error {
	return errors.New("deadlock found when trying to get lock")
}

func TestCompleteFailureMarksRequestFailed(t *testing.T) {
	store := failCompleteStore{MemoryStore: persistence.NewMemoryStore()}
	events := &recordingPublisher{}
	m := NewManager(Deps{Store: store, Verifier: pipeline(time.Second, emptyCorpus{}), Publisher: events})
	defer m.Close()

	req, res, err := m.SubmitAndWait(context.Background(), types.KindText, sensationalText, "")
	require.NoError(t, err)
	assert.Equal(t, types.StateFailed, req.State)
	assert.Nil(t, res)
	_, err = store.GetResult(context.Background(), req.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, int64(1), m.Stats().Failed)
	assert.Zero(t, m.Stats().Completed)
	assert.Zero(t, events.count())
}

func TestExtractionFailureFallsBackToURL(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.err = errors.New("connection refused")
	req, res := h.verify(t, types.KindURL, "https://example.com/article")

	require.NotNil(t, res)
	assert.Equal(t, types.StateCompleted, req.State)
	assert.Equal(t, types.MethodNormal, res.Method)
}

func TestImageRequest(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	store := persistence.NewMemoryStore()
	m := NewManager(Deps{
		Store:    store,
		Verifier: pipeline(time.Second, emptyCorpus{}),
		Images:   fakeImages{data: buf.Bytes()},
	})
	defer m.Close()

	req, res, err := m.SubmitAndWait(context.Background(), types.KindImage, "uploads/a.png", "")
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, req.State)
	require.NotNil(t, res)
	assert.Equal(t, 22, res.TruthScore)
	assert.Empty(t, req.DedupKey)
}

func TestGetResultUnknownID(t *testing.T) {
	h := newHarness(t, nil)
	_, _, err := h.m.GetResult(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCloseFailsInflightRequests(t *testing.T) {
	gate := &gatedVerifier{release: make(chan struct{}), next: failingVerifier{}}
	h := newHarness(t, gate)

	id, err := h.m.Submit(context.Background(), types.KindText, "a claim that will never finish", "")
	require.NoError(t, err)
	h.m.Close()

	req, res, err := h.m.GetResult(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StateFailed, req.State)
	assert.Nil(t, res)

	_, err = h.m.Submit(context.Background(), types.KindText, "another claim for later", "")
	assert.ErrorIs(t, err, ErrClosed)
}
