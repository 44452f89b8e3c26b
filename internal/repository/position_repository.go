package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

const positionsTable = "positions"

const positionsSchema = `
	CREATE TABLE IF NOT EXISTS positions (
		media_id TEXT PRIMARY KEY,
		voice_track_id TEXT NOT NULL,
		season_id TEXT NOT NULL DEFAULT '',
		episode_id TEXT NOT NULL DEFAULT '',
		subtitle_lang TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	)`

// SQLitePositionRepository implements PositionStore on a SQLite table.
type SQLitePositionRepository struct {
	db *sql.DB
}

// NewSQLitePositionRepository opens the positions database at path.
func NewSQLitePositionRepository(path string) (*SQLitePositionRepository, error) {
	db, err := OpenSQLite(path, positionsSchema)
	if err != nil {
		return nil, err
	}
	return &SQLitePositionRepository{db: db}, nil
}

// Close closes the underlying database.
func (r *SQLitePositionRepository) Close() error {
	return r.db.Close()
}

// SavePosition upserts the last selection for a title.
func (r *SQLitePositionRepository) SavePosition(ctx context.Context, pos domain.Position) error {
	if pos.MediaID == "" {
		return fmt.Errorf("%w: media id is required", domain.ErrInvalidIntent)
	}

	query := sq.Insert(positionsTable).
		Columns("media_id", "voice_track_id", "season_id", "episode_id", "subtitle_lang", "updated_at").
		Values(pos.MediaID, pos.VoiceTrackID, pos.SeasonID, pos.EpisodeID, pos.SubtitleLang, time.Now().UTC()).
		Suffix(`ON CONFLICT(media_id) DO UPDATE SET
			voice_track_id = excluded.voice_track_id,
			season_id = excluded.season_id,
			episode_id = excluded.episode_id,
			subtitle_lang = excluded.subtitle_lang,
			updated_at = excluded.updated_at`).
		RunWith(r.db)

	if _, err := query.ExecContext(ctx); err != nil {
		return fmt.Errorf("save position for %q: %w", pos.MediaID, err)
	}
	return nil
}

// GetPosition returns the stored selection for a title.
func (r *SQLitePositionRepository) GetPosition(ctx context.Context, mediaID string) (*domain.Position, error) {
	query := sq.Select("media_id", "voice_track_id", "season_id", "episode_id", "subtitle_lang").
		From(positionsTable).
		Where(sq.Eq{"media_id": mediaID}).
		RunWith(r.db)

	var pos domain.Position
	err := query.QueryRowContext(ctx).Scan(&pos.MediaID, &pos.VoiceTrackID, &pos.SeasonID, &pos.EpisodeID, &pos.SubtitleLang)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position for %q: %w", mediaID, err)
	}
	return &pos, nil
}
