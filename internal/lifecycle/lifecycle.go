// Package lifecycle drives a video from upload through analysis to a
// terminal state.
//
// States move uploading -> processing -> completed | error. Upload and
// analysis failures never escape Run: they are recorded on the video, a
// notification is emitted and the configured Policy decides the terminal
// state. PolicyStrict ends in error; PolicyLenient stores a placeholder
// transcript and ends in completed so the viewer always has something to show.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loukt/video-transcript-explorer/internal/analysis"
	"github.com/loukt/video-transcript-explorer/internal/blob"
	"github.com/loukt/video-transcript-explorer/internal/docstore"
	"github.com/loukt/video-transcript-explorer/internal/models"
	"github.com/loukt/video-transcript-explorer/internal/notify"
	"github.com/loukt/video-transcript-explorer/internal/store"
	"github.com/loukt/video-transcript-explorer/internal/subtitles"
	"github.com/loukt/video-transcript-explorer/internal/transcript"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	errMediaUnreachable = errors.New("media is only stored locally and cannot be reached by the analysis service")
	errPollLimit        = errors.New("analysis job did not finish within the allowed poll attempts")
)

// maxProgressEstimate caps estimated processing progress until the job is
// confirmed succeeded.
const maxProgressEstimate = 95

// Policy selects the terminal state after a failure.
type Policy string

const (
	PolicyStrict  Policy = "strict"
	PolicyLenient Policy = "lenient"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyStrict, PolicyLenient:
		return p, nil
	default:
		return "", fmt.Errorf("unknown processing policy %q", s)
	}
}

// Analyzer starts and polls analysis jobs.
type Analyzer interface {
	Start(ctx context.Context, mediaURL string) (analysis.JobHandle, error)
	Poll(ctx context.Context, job analysis.JobHandle) (analysis.JobStatus, error)
}

// ProgressSink receives every state and progress change.
type ProgressSink interface {
	PublishProgress(evt models.ProgressEvent)
}

// PollConfig bounds the analysis poll loop. Zero MaxAttempts or Timeout
// means unbounded.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
	// MaxRetries is the number of consecutive failed polls tolerated before
	// processing fails. Retries back off exponentially from Interval.
	MaxRetries int
	MaxBackoff time.Duration
}

// DefaultPollConfig polls every five seconds for up to an hour.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    5 * time.Second,
		MaxAttempts: 720,
		Timeout:     time.Hour,
		MaxRetries:  3,
		MaxBackoff:  time.Minute,
	}
}

// Options wires a Controller to its collaborators. Uploader and Analyzer
// are required.
type Options struct {
	Policy    Policy
	Poll      PollConfig
	Uploader  blob.Uploader
	Fallback  blob.Uploader
	Analyzer  Analyzer
	Documents docstore.Store
	Notifier  notify.Notifier
	Progress  ProgressSink
}

// Media is the uploaded file. Body must be seekable so that a failed upload
// can be replayed into the fallback uploader.
type Media struct {
	Body        io.ReadSeeker
	Size        int64
	ContentType string
}

type Controller struct {
	logger  *slog.Logger
	store   *store.Store
	builder *transcript.Builder
	opts    Options

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

func New(st *store.Store, opts Options, logger *slog.Logger) (*Controller, error) {
	if _, err := ParsePolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if opts.Uploader == nil || opts.Analyzer == nil {
		return nil, errors.New("lifecycle: uploader and analyzer are required")
	}
	if opts.Poll.Interval < 0 || opts.Poll.MaxAttempts < 0 || opts.Poll.MaxRetries < 0 {
		return nil, errors.New("lifecycle: poll settings must not be negative")
	}
	if opts.Documents == nil {
		opts.Documents = docstore.Nop{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLog(logger)
	}
	return &Controller{
		logger:  logger,
		store:   st,
		builder: transcript.NewBuilder(st, logger),
		opts:    opts,
		now:     time.Now,
		newID:   func() string { return "video-" + uuid.NewString() },
		sleep:   sleepContext,
	}, nil
}

// Upload validates and registers the video, then runs its whole lifecycle.
// Only ErrInvalidInput is returned; every later failure is reflected in the
// returned video.
func (c *Controller) Upload(ctx context.Context, name string, media Media) (models.Video, error) {
	v, err := c.Begin(name, media.ContentType)
	if err != nil {
		return models.Video{}, err
	}
	return c.Run(ctx, v.ID, media), nil
}

// Begin validates the file and creates the video in the uploading state.
func (c *Controller) Begin(name, contentType string) (models.Video, error) {
	if strings.TrimSpace(name) == "" {
		return models.Video{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/") {
		c.opts.Notifier.Notify(context.Background(), models.Notification{
			Title:       "Invalid file type",
			Description: "Please upload a video file",
			Severity:    models.SeverityDestructive,
		})
		return models.Video{}, fmt.Errorf("%w: %q is not a video content type", ErrInvalidInput, contentType)
	}

	now := c.now()
	v := models.Video{
		ID:         c.newID(),
		Name:       name,
		UploadDate: now,
		Status:     models.StatusUploading,
		UpdatedAt:  now,
	}
	c.store.UpsertVideo(v)
	c.publish(v, "upload started")
	c.logger.Info("video registered", "video_id", v.ID, "name", name)
	return v, nil
}

// SetMediaInfo records where the raw upload is kept locally and its duration.
func (c *Controller) SetMediaInfo(id, localPath string, duration float64) {
	c.store.UpdateVideo(id, func(v *models.Video) {
		v.LocalPath = localPath
		v.Duration = duration
		v.UpdatedAt = c.now()
	})
}

// Run uploads media for the registered video id and processes it to a
// terminal state, returning the final video.
func (c *Controller) Run(ctx context.Context, id string, media Media) models.Video {
	v, ok := c.store.FindVideo(id)
	if !ok {
		c.logger.Error("run for unknown video", "video_id", id)
		return models.Video{}
	}

	location, fallback, err := c.upload(ctx, v, media)
	if err != nil {
		return c.fail(ctx, id, err)
	}

	v, _ = c.update(id, "upload complete, analysis starting", func(v *models.Video) {
		v.Status = models.StatusProcessing
		v.MediaURL = location
		v.UploadFallback = fallback
		v.UploadProgress = 100
		v.ProcessingProgress = 0
	})

	if fallback || blob.IsLocal(location) {
		return c.fail(ctx, id, errMediaUnreachable)
	}
	if err := c.process(ctx, v); err != nil {
		return c.fail(ctx, id, err)
	}
	v, _ = c.store.FindVideo(id)
	return v
}

func (c *Controller) upload(ctx context.Context, v models.Video, media Media) (string, bool, error) {
	key := v.ID + strings.ToLower(filepath.Ext(v.Name))
	onProgress := func(percent int) { c.uploadProgress(v.ID, percent) }

	location, err := c.opts.Uploader.Upload(ctx, key, media.Body, media.Size, media.ContentType, onProgress)
	if err == nil {
		return location, false, nil
	}
	if c.opts.Fallback == nil || ctx.Err() != nil {
		return "", false, err
	}

	c.logger.Warn("blob upload failed, falling back to local storage", "video_id", v.ID, "error", err)
	if _, seekErr := media.Body.Seek(0, io.SeekStart); seekErr != nil {
		return "", false, errors.Join(err, fmt.Errorf("rewind media: %w", seekErr))
	}
	location, fbErr := c.opts.Fallback.Upload(ctx, key, media.Body, media.Size, media.ContentType, onProgress)
	if fbErr != nil {
		return "", false, errors.Join(err, fbErr)
	}
	return location, true, nil
}

func (c *Controller) uploadProgress(id string, percent int) {
	if percent > 100 {
		percent = 100
	}
	changed := false
	v, ok := c.store.UpdateVideo(id, func(v *models.Video) {
		if v.Status != models.StatusUploading || percent <= v.UploadProgress {
			return
		}
		v.UploadProgress = percent
		v.UpdatedAt = c.now()
		changed = true
	})
	if ok && changed {
		c.publish(v, "uploading")
	}
}

// process runs the analysis job for v and stores its transcript.
func (c *Controller) process(ctx context.Context, v models.Video) error {
	cfg := c.opts.Poll
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	job, err := c.opts.Analyzer.Start(ctx, v.MediaURL)
	if err != nil {
		return err
	}
	c.logger.Info("analysis started", "video_id", v.ID, "job_id", job.ID)

	progress := 0
	failures := 0
	for attempt := 1; ; attempt++ {
		progress += min(5, 100-progress)
		estimate := min(progress, maxProgressEstimate)
		c.update(v.ID, "analyzing", func(v *models.Video) {
			if estimate > v.ProcessingProgress {
				v.ProcessingProgress = estimate
			}
		})

		status, err := c.opts.Analyzer.Poll(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("processing stopped: %w", ctx.Err())
			}
			failures++
			if failures > cfg.MaxRetries {
				return err
			}
			c.logger.Warn("analysis poll failed, retrying", "video_id", v.ID, "job_id", job.ID, "retry", failures, "error", err)
			if err := c.sleep(ctx, c.backoff(failures)); err != nil {
				return fmt.Errorf("processing stopped: %w", err)
			}
			continue
		}
		failures = 0

		switch status.State {
		case analysis.StateSucceeded:
			return c.complete(ctx, v, status)
		case analysis.StateFailed:
			return fmt.Errorf("%w: %s", analysis.ErrJobFailed, status.Reason)
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return errPollLimit
		}
		if err := c.sleep(ctx, cfg.Interval); err != nil {
			return fmt.Errorf("processing stopped: %w", err)
		}
	}
}

func (c *Controller) complete(ctx context.Context, v models.Video, status analysis.JobStatus) error {
	t := c.builder.Build(v.ID, status)
	c.persist(ctx, t)

	c.update(v.ID, "transcript ready", func(v *models.Video) {
		v.Status = models.StatusCompleted
		v.ProcessingProgress = 100
		v.Error = ""
	})
	c.opts.Notifier.Notify(context.WithoutCancel(ctx), models.Notification{
		VideoID:     v.ID,
		Title:       "Processing complete",
		Description: fmt.Sprintf("Transcript for %q is ready.", v.Name),
		Severity:    models.SeverityInfo,
	})
	c.logger.Info("video processed", "video_id", v.ID)
	return nil
}

// fail applies the configured policy to a failed video.
func (c *Controller) fail(ctx context.Context, id string, cause error) models.Video {
	ctx = context.WithoutCancel(ctx)
	v, _ := c.store.FindVideo(id)
	c.logger.Error("video processing failed", "video_id", id, "policy", c.opts.Policy, "error", cause)

	var description string
	if c.opts.Policy == PolicyLenient {
		t := transcript.Placeholder(id, v.Name, cause.Error(), c.now())
		c.store.UpsertTranscript(t)
		c.persist(ctx, t)
		v, _ = c.update(id, "completed with placeholder transcript", func(v *models.Video) {
			v.Status = models.StatusCompleted
			v.ProcessingProgress = 100
			v.Error = cause.Error()
		})
		description = fmt.Sprintf("Failed to process %q. A placeholder transcript is shown. %s", v.Name, cause)
	} else {
		v, _ = c.update(id, "processing failed", func(v *models.Video) {
			v.Status = models.StatusError
			v.ProcessingProgress = 0
			v.Error = cause.Error()
		})
		description = fmt.Sprintf("Failed to process %q. %s", v.Name, cause)
	}

	c.opts.Notifier.Notify(ctx, models.Notification{
		VideoID:     id,
		Title:       "Processing failed",
		Description: description,
		Severity:    models.SeverityDestructive,
	})
	return v
}

func (c *Controller) persist(ctx context.Context, t models.Transcript) {
	if err := c.opts.Documents.Create(ctx, t); err != nil {
		c.logger.Warn("transcript not persisted", "video_id", t.VideoID, "error", err)
	}
}

func (c *Controller) update(id, message string, fn func(*models.Video)) (models.Video, bool) {
	v, ok := c.store.UpdateVideo(id, func(v *models.Video) {
		fn(v)
		v.UpdatedAt = c.now()
	})
	if ok {
		c.publish(v, message)
	}
	return v, ok
}

func (c *Controller) publish(v models.Video, message string) {
	if c.opts.Progress != nil {
		c.opts.Progress.PublishProgress(v.ProgressEvent(message))
	}
}

func (c *Controller) backoff(retry int) time.Duration {
	d := c.opts.Poll.Interval
	for i := 1; i < retry; i++ {
		d *= 2
		if c.opts.Poll.MaxBackoff > 0 && d >= c.opts.Poll.MaxBackoff {
			return c.opts.Poll.MaxBackoff
		}
	}
	return d
}

// Video returns the stored video with id.
func (c *Controller) Video(id string) (models.Video, bool) {
	return c.store.FindVideo(id)
}

// Videos lists videos newest first.
func (c *Controller) Videos() []models.Video {
	return c.store.ListVideosByRecency()
}

// Transcript returns the transcript of video id.
func (c *Controller) Transcript(id string) (models.Transcript, bool) {
	return c.store.FindTranscript(id)
}

// Download renders the transcript of videoID. An empty name uses the
// video's original file name.
func (c *Controller) Download(videoID, name string, format subtitles.Format) (subtitles.Download, error) {
	t, ok := c.store.FindTranscript(videoID)
	if !ok {
		return subtitles.Download{}, fmt.Errorf("transcript for video %q: %w", videoID, ErrNotFound)
	}
	if name == "" {
		if v, ok := c.store.FindVideo(videoID); ok {
			name = v.Name
		}
	}
	return subtitles.Export(t, name, format), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
