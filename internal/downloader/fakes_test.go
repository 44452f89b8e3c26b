package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/internal/repository"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type addCall struct {
	uris []string
	opts aria2.Options
}

type fakeRPC struct {
	mu sync.Mutex

	adds    []addCall
	addErr  error
	nextGID int

	echo       string // overrides the echoed gid when set
	controlErr error
	paused     []string
	unpaused   []string
	removed    []string
	cleared    []string
	options    []aria2.Options

	stat      aria2.GlobalStat
	statErr   error
	statCalls int
	statBlock chan struct{}

	multicalls [][]aria2.MethodCall
	results    []aria2.Result
	multiErr   error
}

func (f *fakeRPC) AddURI(ctx context.Context, uris []string, opts aria2.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, addCall{uris: uris, opts: opts})
	if f.addErr != nil {
		return "", f.addErr
	}
	f.nextGID++
	return fmt.Sprintf("gid-%d", f.nextGID), nil
}

func (f *fakeRPC) echoed(gid string) string {
	if f.echo != "" {
		return f.echo
	}
	return gid
}

func (f *fakeRPC) Remove(ctx context.Context, gid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.controlErr != nil {
		return "", f.controlErr
	}
	f.removed = append(f.removed, gid)
	return f.echoed(gid), nil
}

func (f *fakeRPC) Pause(ctx context.Context, gid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.controlErr != nil {
		return "", f.controlErr
	}
	f.paused = append(f.paused, gid)
	return f.echoed(gid), nil
}

func (f *fakeRPC) Unpause(ctx context.Context, gid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.controlErr != nil {
		return "", f.controlErr
	}
	f.unpaused = append(f.unpaused, gid)
	return f.echoed(gid), nil
}

func (f *fakeRPC) RemoveDownloadResult(ctx context.Context, gid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, gid)
	return nil
}

func (f *fakeRPC) ChangeGlobalOption(ctx context.Context, opts aria2.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.controlErr != nil {
		return f.controlErr
	}
	f.options = append(f.options, opts)
	return nil
}

func (f *fakeRPC) GetGlobalStat(ctx context.Context) (*aria2.GlobalStat, error) {
	f.mu.Lock()
	f.statCalls++
	block := f.statBlock
	stat, err := f.stat, f.statErr
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

func (f *fakeRPC) Multicall(ctx context.Context, calls []aria2.MethodCall) ([]aria2.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multicalls = append(f.multicalls, calls)
	if f.multiErr != nil {
		return nil, f.multiErr
	}
	return f.results, nil
}

// rpcLog is a copy of everything the fake daemon was asked to do.
type rpcLog struct {
	adds       []addCall
	paused     []string
	unpaused   []string
	removed    []string
	cleared    []string
	options    []aria2.Options
	multicalls [][]aria2.MethodCall
	statCalls  int
}

func (f *fakeRPC) log() rpcLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return rpcLog{
		adds:       append([]addCall(nil), f.adds...),
		paused:     append([]string(nil), f.paused...),
		unpaused:   append([]string(nil), f.unpaused...),
		removed:    append([]string(nil), f.removed...),
		cleared:    append([]string(nil), f.cleared...),
		options:    append([]aria2.Options(nil), f.options...),
		multicalls: append([][]aria2.MethodCall(nil), f.multicalls...),
		statCalls:  f.statCalls,
	}
}

func (f *fakeRPC) set(fn func(f *fakeRPC)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func statusResult(t *testing.T, method string, infos ...aria2.StatusInfo) aria2.Result {
	t.Helper()
	raw, err := json.Marshal(infos)
	if err != nil {
		t.Fatalf("marshal status: %v", err)
	}
	return aria2.Result{Method: method, Raw: raw}
}

type fakeResolver struct {
	mu         sync.Mutex
	streams    *domain.Streams
	err        error
	seasons    []domain.Season
	seasonsErr error
	resolved   []domain.DownloadRequest
}

func (f *fakeResolver) Resolve(ctx context.Context, req domain.DownloadRequest) (*domain.Streams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, req)
	if f.err != nil {
		return nil, f.err
	}
	s := *f.streams
	return &s, nil
}

func (f *fakeResolver) Seasons(ctx context.Context, media domain.Media, voice domain.VoiceTrack) ([]domain.Season, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seasons, f.seasonsErr
}

func (f *fakeResolver) resolveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resolved)
}

type fakeAccount struct {
	mu     sync.Mutex
	authed bool
	saved  []string
}

func (f *fakeAccount) Authenticated() bool { return f.authed }

func (f *fakeAccount) SaveWatchProgress(ctx context.Context, media domain.Media, voice domain.VoiceTrack, season *domain.Season, episode *domain.Episode, position, duration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, fmt.Sprintf("%s/%s/%s/%s@%v", media.ID, voice.ID, season.ID, episode.ID, position))
	return nil
}

func (f *fakeAccount) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakePositions struct {
	mu    sync.Mutex
	saved []domain.Position
}

func (f *fakePositions) SavePosition(ctx context.Context, pos domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, pos)
	return nil
}

func (f *fakePositions) GetPosition(ctx context.Context, mediaID string) (*domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].MediaID == mediaID {
			p := f.saved[i]
			return &p, nil
		}
	}
	return nil, domain.ErrPositionNotFound
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (f *fakeNotifier) Notify(n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

func (f *fakeNotifier) all() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification(nil), f.sent...)
}

func (f *fakeNotifier) last(t *testing.T) domain.Notification {
	t.Helper()
	all := f.all()
	if len(all) == 0 {
		t.Fatal("no notification sent")
	}
	return all[len(all)-1]
}

type fakeSupervisor struct {
	mu         sync.Mutex
	states     chan bool
	started    bool
	terminated bool
	startErr   error
}

func (f *fakeSupervisor) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeSupervisor) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started && !f.terminated
}

func (f *fakeSupervisor) Watch() <-chan bool { return f.states }

func (f *fakeSupervisor) Terminate(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = true
	return nil
}

type harness struct {
	d         *Downloader
	rpc       *fakeRPC
	resolver  *fakeResolver
	account   *fakeAccount
	positions *fakePositions
	notifier  *fakeNotifier
	registry  *repository.InMemoryDownloadRegistry
	root      string
}

func defaultStreams() *domain.Streams {
	return &domain.Streams{
		Candidates: []domain.StreamCandidate{
			{Quality: "360p", URL: "https://cdn.example/360.mp4"},
			{Quality: "720p", URL: "https://cdn.example/720.mp4"},
			{Quality: "1080p", URL: "https://cdn.example/1080.mp4"},
		},
		Subtitles: []domain.SubtitleTrack{
			{Lang: "en", Name: "English", URL: "https://cdn.example/en.vtt"},
		},
	}
}

func newHarness(t *testing.T, mutate ...func(cfg *Config, deps *Dependencies)) *harness {
	t.Helper()

	h := &harness{
		rpc:       &fakeRPC{},
		resolver:  &fakeResolver{streams: defaultStreams()},
		account:   &fakeAccount{},
		positions: &fakePositions{},
		notifier:  &fakeNotifier{},
		registry:  repository.NewInMemoryDownloadRegistry(),
	}
	cfg := Config{
		DownloadsDir:   t.TempDir(),
		AppFolder:      "SeriesGrab",
		PollInterval:   time.Hour,
		StartupTimeout: time.Second,
		PurchaseURL:    "https://site.example/payments/",
	}
	deps := Dependencies{
		RPC:       h.rpc,
		Registry:  h.registry,
		Resolver:  h.resolver,
		Account:   h.account,
		Positions: h.positions,
		Notifier:  h.notifier,
	}
	for _, fn := range mutate {
		fn(&cfg, &deps)
	}
	h.root = cfg.Root()

	h.d = New(cfg, deps, testLogger())
	if err := h.d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { h.d.Stop(2 * time.Second) })
	return h
}

func episodeRequest() domain.DownloadRequest {
	return domain.DownloadRequest{
		Media:      domain.Media{ID: "m1", Title: "Show"},
		VoiceTrack: domain.VoiceTrack{ID: "56", Name: "Original"},
		Season:     &domain.Season{ID: "1", Name: "Season 1"},
		Episode:    &domain.Episode{ID: "2", Name: "Episode 2"},
		Quality:    "720p",
	}
}

func movieRequest() domain.DownloadRequest {
	return domain.DownloadRequest{
		Media:      domain.Media{ID: "m2", Title: "Film: Part 1/2"},
		VoiceTrack: domain.VoiceTrack{ID: "1"},
		Quality:    "1080p",
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
