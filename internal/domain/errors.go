package domain

import "errors"

// Domain errors.
var (
	// ErrJobNotFound is returned when a gid is not in the registry.
	ErrJobNotFound = errors.New("download job not found")

	// ErrInvalidIntent is returned when a download request is incomplete.
	ErrInvalidIntent = errors.New("invalid download request")

	// ErrInvalidPayload is returned when a notification payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid notification payload")

	// ErrNotificationNotFound is returned when a notification id is unknown.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrNoAction is returned when a notification offers no action.
	ErrNoAction = errors.New("notification has no action")

	// ErrPremiumRequired is returned when the stream needs a premium account.
	ErrPremiumRequired = errors.New("premium account required")

	// ErrNoCandidates is returned when the resolver offers no playable URL.
	ErrNoCandidates = errors.New("no playable stream found")

	// ErrNoEpisodes is returned when a season has no episodes to download.
	ErrNoEpisodes = errors.New("season has no episodes")

	// ErrNoDestination is returned when the downloads directory is unusable.
	ErrNoDestination = errors.New("downloads directory unavailable")

	// ErrStorageFull is returned when there is insufficient storage space.
	ErrStorageFull = errors.New("insufficient storage space")

	// ErrDaemonUnavailable is returned when the download daemon is not running.
	ErrDaemonUnavailable = errors.New("download daemon unavailable")

	// ErrNotConfirmed is returned when the daemon does not echo the gid back.
	ErrNotConfirmed = errors.New("daemon did not confirm the operation")

	// ErrPositionNotFound is returned when no selection is stored for a title.
	ErrPositionNotFound = errors.New("position not found")
)

// DownloadError wraps an error with job context.
type DownloadError struct {
	GID string
	Op  string
	Err error
}

func (e *DownloadError) Error() string {
	if e.GID != "" {
		return e.Op + " [" + e.GID + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewDownloadError creates a new DownloadError.
func NewDownloadError(gid, op string, err error) *DownloadError {
	return &DownloadError{
		GID: gid,
		Op:  op,
		Err: err,
	}
}
