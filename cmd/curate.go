package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/ferrovax/crate/internal/formatter"
	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/repositories"
	"github.com/ferrovax/crate/internal/shared"
)

// resolveTrack validates a track-id argument against the database.
func (r *Runner) resolveTrack(trackID string) (*models.Track, *repositories.TrackRepository, error) {
	if trackID == "" {
		return nil, nil, fmt.Errorf("%w: track-id", shared.ErrMissingArgument)
	}

	db, err := r.database()
	if err != nil {
		return nil, nil, err
	}

	repo := repositories.NewTrackRepository(db)
	track, err := repo.Get(trackID)
	if err != nil {
		return nil, nil, err
	}
	return track, repo, nil
}

// TagAdd attaches a user-owned tag to a track.
func (r *Runner) TagAdd(ctx context.Context, cmd *cli.Command) error {
	track, _, err := r.resolveTrack(cmd.StringArg("track-id"))
	if err != nil {
		return err
	}
	label := cmd.StringArg("label")

	tag := models.NewTag(track.ID(), label, models.SourceUser)
	if err := repositories.NewTagRepository(r.db).Create(tag); err != nil {
		return err
	}

	r.logger.Info("tag added", "track", track.ID(), "label", tag.Label())
	return r.writePlain("Tagged %s - %s with %q\n", track.Artist(), track.Title(), tag.Label())
}

// TagRemove deletes a user-owned tag from a track.
func (r *Runner) TagRemove(ctx context.Context, cmd *cli.Command) error {
	track, _, err := r.resolveTrack(cmd.StringArg("track-id"))
	if err != nil {
		return err
	}
	label := cmd.StringArg("label")

	if err := repositories.NewTagRepository(r.db).DeleteByLabel(track.ID(), label, models.SourceUser); err != nil {
		return err
	}
	return r.writePlain("Removed %q from %s - %s\n", label, track.Artist(), track.Title())
}

// TagList shows every tag on a track with its source.
func (r *Runner) TagList(ctx context.Context, cmd *cli.Command) error {
	track, _, err := r.resolveTrack(cmd.StringArg("track-id"))
	if err != nil {
		return err
	}

	tags, err := repositories.NewTagRepository(r.db).ListByTrack(track.ID())
	if err != nil {
		return err
	}

	if len(tags) == 0 {
		return r.writePlain("No tags on %s - %s\n", track.Artist(), track.Title())
	}

	r.writePlain("Tags on %s - %s:\n", track.Artist(), track.Title())
	for _, tag := range tags {
		r.writePlain("  %s (%s)\n", tag.Label(), tag.Source())
	}
	return nil
}

// NoteSet creates or replaces the user's note on a track.
func (r *Runner) NoteSet(ctx context.Context, cmd *cli.Command) error {
	track, _, err := r.resolveTrack(cmd.StringArg("track-id"))
	if err != nil {
		return err
	}
	body := cmd.StringArg("body")

	repo := repositories.NewNoteRepository(r.db)
	existing, err := repo.GetByTrack(track.ID(), models.SourceUser)
	if err != nil {
		return err
	}

	if existing == nil {
		if err := repo.Create(models.NewNote(track.ID(), body)); err != nil {
			return err
		}
	} else {
		existing.SetBody(body)
		if err := repo.Update(existing); err != nil {
			return err
		}
	}

	return r.writePlain("Note saved on %s - %s\n", track.Artist(), track.Title())
}

// NoteShow prints every note on a track.
func (r *Runner) NoteShow(ctx context.Context, cmd *cli.Command) error {
	track, _, err := r.resolveTrack(cmd.StringArg("track-id"))
	if err != nil {
		return err
	}

	notes, err := repositories.NewNoteRepository(r.db).ListByTrack(track.ID())
	if err != nil {
		return err
	}

	if len(notes) == 0 {
		return r.writePlain("No notes on %s - %s\n", track.Artist(), track.Title())
	}

	for _, note := range notes {
		r.writePlain("[%s] %s\n", note.Source(), note.Body())
	}
	return nil
}

// NoteClear deletes the user's note on a track.
func (r *Runner) NoteClear(ctx context.Context, cmd *cli.Command) error {
	track, _, err := r.resolveTrack(cmd.StringArg("track-id"))
	if err != nil {
		return err
	}

	repo := repositories.NewNoteRepository(r.db)
	existing, err := repo.GetByTrack(track.ID(), models.SourceUser)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.writePlain("No note to clear on %s - %s\n", track.Artist(), track.Title())
	}

	if err := repo.Delete(existing.ID()); err != nil {
		return err
	}
	return r.writePlain("Note cleared on %s - %s\n", track.Artist(), track.Title())
}

// RateSet creates or replaces the user's rating on a track.
func (r *Runner) RateSet(ctx context.Context, cmd *cli.Command) error {
	track, _, err := r.resolveTrack(cmd.StringArg("track-id"))
	if err != nil {
		return err
	}
	value, err := strconv.Atoi(cmd.StringArg("value"))
	if err != nil {
		return fmt.Errorf("%w: rating must be a number between 0 and %d", shared.ErrInvalidArgument, models.RatingMax)
	}

	repo := repositories.NewRatingRepository(r.db)
	existing, err := repo.GetByTrack(track.ID(), models.SourceUser)
	if err != nil {
		return err
	}

	if existing == nil {
		if err := repo.Create(models.NewRating(track.ID(), value, models.SourceUser)); err != nil {
			return err
		}
	} else {
		existing.SetValue(value)
		if err := repo.Update(existing); err != nil {
			return err
		}
	}

	return r.writePlain("Rated %s - %s: %s\n", track.Artist(), track.Title(), formatter.RenderRating(value, true))
}

// RateClear deletes the user's rating on a track.
func (r *Runner) RateClear(ctx context.Context, cmd *cli.Command) error {
	track, _, err := r.resolveTrack(cmd.StringArg("track-id"))
	if err != nil {
		return err
	}

	repo := repositories.NewRatingRepository(r.db)
	existing, err := repo.GetByTrack(track.ID(), models.SourceUser)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.writePlain("No rating to clear on %s - %s\n", track.Artist(), track.Title())
	}

	if err := repo.Delete(existing.ID()); err != nil {
		return err
	}
	return r.writePlain("Rating cleared on %s - %s\n", track.Artist(), track.Title())
}
