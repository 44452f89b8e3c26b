package downloader

import (
	"context"
	"time"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

// RPC is the daemon control channel.
type RPC interface {
	AddURI(ctx context.Context, uris []string, opts aria2.Options) (string, error)
	Remove(ctx context.Context, gid string) (string, error)
	Pause(ctx context.Context, gid string) (string, error)
	Unpause(ctx context.Context, gid string) (string, error)
	RemoveDownloadResult(ctx context.Context, gid string) error
	ChangeGlobalOption(ctx context.Context, opts aria2.Options) error
	GetGlobalStat(ctx context.Context) (*aria2.GlobalStat, error)
	Multicall(ctx context.Context, calls []aria2.MethodCall) ([]aria2.Result, error)
}

// Supervisor owns the daemon process.
type Supervisor interface {
	Start() error
	Running() bool
	Watch() <-chan bool
	Terminate(timeout time.Duration) error
}

// MediaResolver turns a selection into playable URLs.
type MediaResolver interface {
	// Resolve returns stream candidates for the request's voice track and
	// episode. Premium-only content is reported through Streams.NeedsPremium.
	Resolve(ctx context.Context, req domain.DownloadRequest) (*domain.Streams, error)

	// Seasons lists seasons with their episodes, in site order.
	Seasons(ctx context.Context, media domain.Media, voice domain.VoiceTrack) ([]domain.Season, error)
}

// AccountSync mirrors playback state to the user's site account.
type AccountSync interface {
	Authenticated() bool
	SaveWatchProgress(ctx context.Context, media domain.Media, voice domain.VoiceTrack, season *domain.Season, episode *domain.Episode, position, duration time.Duration) error
}
