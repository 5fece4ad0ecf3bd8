package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/loukt/video-transcript-explorer/internal/blob"
	"github.com/loukt/video-transcript-explorer/internal/lifecycle"
	"github.com/loukt/video-transcript-explorer/internal/models"
	"github.com/loukt/video-transcript-explorer/internal/notify"
	"github.com/loukt/video-transcript-explorer/internal/subtitles"
)

const (
	defaultMaxUploadBytes = 500 * 1024 * 1024
	recentVideosLimit     = 50
)

// Prober reports media duration in seconds, zero when unknown.
type Prober interface {
	DurationOrZero(ctx context.Context, path string) float64
}

type Options struct {
	UploadsDir     string
	MaxUploadBytes int64
	// BaseContext bounds background processing started by uploads.
	BaseContext context.Context
}

type App struct {
	logger *slog.Logger

	router *chi.Mux
	videos *lifecycle.Controller
	hub    *notify.Hub
	prober Prober

	uploadsDir     string
	maxUploadBytes int64

	baseCtx context.Context
	running sync.WaitGroup
	now     func() time.Time
}

func NewApp(logger *slog.Logger, videos *lifecycle.Controller, hub *notify.Hub, prober Prober, opts Options) *App {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}

	app := &App{
		logger:         logger,
		router:         chi.NewRouter(),
		videos:         videos,
		hub:            hub,
		prober:         prober,
		uploadsDir:     opts.UploadsDir,
		maxUploadBytes: opts.MaxUploadBytes,
		baseCtx:        opts.BaseContext,
		now:            time.Now,
	}

	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

// Wait blocks until every upload started by this app reached a terminal state.
func (a *App) Wait() {
	a.running.Wait()
}

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(a.corsMiddleware)

	a.router.Get("/ws/{id}", a.videoWS)

	a.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Minute))

		r.Get("/", a.index)
		r.Post("/upload", a.upload)
		r.Get("/transcript/{id}", a.downloadTranscript)
		r.Get("/healthz", a.health)

		r.Route("/api/videos", func(r chi.Router) {
			r.Get("/", a.listVideos)
			r.Get("/{id}", a.getVideo)
			r.Get("/{id}/transcript", a.getTranscript)
		})
	})
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": a.now().Format(time.RFC3339)})
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, indexPage(a.recentVideos()))
}

func (a *App) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.logger.Warn("invalid multipart upload", "error", err)
		a.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload or larger than %d bytes", a.maxUploadBytes))
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		a.respondError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	if header.Size > a.maxUploadBytes {
		a.respondError(w, http.StatusBadRequest, "video exceeds the upload limit")
		return
	}
	contentType := header.Header.Get("Content-Type")

	if err := os.MkdirAll(a.uploadsDir, 0o755); err != nil {
		a.logger.Error("failed to ensure uploads dir", "error", err)
		a.respondError(w, http.StatusInternalServerError, "could not prepare upload")
		return
	}

	name := strings.TrimSpace(header.Filename)
	if name != "" {
		name = filepath.Base(name)
	}
	localPath := filepath.Join(a.uploadsDir, uuid.NewString()+"_"+sanitizeFileName(name))
	out, err := os.Create(localPath)
	if err != nil {
		a.logger.Error("failed to create upload file", "error", err)
		a.respondError(w, http.StatusInternalServerError, "could not save upload")
		return
	}
	size, err := out.ReadFrom(file)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		a.logger.Error("failed to persist upload", "error", err)
		a.respondError(w, http.StatusInternalServerError, "could not save upload")
		return
	}

	video, err := a.videos.Begin(name, contentType)
	if err != nil {
		_ = os.Remove(localPath)
		if errors.Is(err, lifecycle.ErrInvalidInput) {
			a.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.respondError(w, http.StatusInternalServerError, "could not register video")
		return
	}
	a.videos.SetMediaInfo(video.ID, localPath, a.prober.DurationOrZero(r.Context(), localPath))

	a.running.Add(1)
	go a.process(video.ID, localPath, size, contentType)

	a.logger.Info("upload saved", "video_id", video.ID, "file", name, "bytes", size)
	video, _ = a.videos.Video(video.ID)
	a.respondJSON(w, http.StatusAccepted, map[string]any{
		"video":  video,
		"ws_url": "/ws/" + video.ID,
	})
}

func (a *App) process(id, localPath string, size int64, contentType string) {
	defer a.running.Done()

	f, err := os.Open(localPath)
	if err != nil {
		a.logger.Error("failed to reopen upload", "video_id", id, "error", err)
		return
	}
	defer f.Close()

	a.videos.Run(a.baseCtx, id, lifecycle.Media{Body: f, Size: size, ContentType: contentType})
}

func (a *App) listVideos(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, a.videos.Videos())
}

func (a *App) getVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := a.videos.Video(chi.URLParam(r, "id"))
	if !ok {
		a.respondError(w, http.StatusNotFound, "video not found")
		return
	}
	a.respondJSON(w, http.StatusOK, video)
}

func (a *App) getTranscript(w http.ResponseWriter, r *http.Request) {
	t, ok := a.videos.Transcript(chi.URLParam(r, "id"))
	if !ok {
		a.respondError(w, http.StatusNotFound, "transcript not found")
		return
	}
	a.respondJSON(w, http.StatusOK, t)
}

func (a *App) downloadTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	format, err := subtitles.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	dl, err := a.videos.Download(videoID, r.URL.Query().Get("name"), format)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotFound) {
			a.respondError(w, http.StatusNotFound, "transcript not found")
			return
		}
		a.respondError(w, http.StatusInternalServerError, "could not render transcript")
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Body); err != nil {
		a.logger.Warn("transcript download interrupted", "video_id", videoID, "error", err)
	}
}

func (a *App) videoWS(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	video, ok := a.videos.Video(videoID)
	if !ok {
		http.Error(w, "video not found", http.StatusNotFound)
		return
	}
	a.hub.Serve(w, r, videoID, video.ProgressEvent(""))
}

func (a *App) render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		a.logger.Error("failed to render template", "error", err)
		http.Error(w, "could not render page", http.StatusInternalServerError)
	}
}

func (a *App) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode json", "error", err)
	}
}

func (a *App) respondError(w http.ResponseWriter, code int, msg string) {
	a.respondJSON(w, code, map[string]string{"error": msg})
}

func (a *App) recentVideos() []models.Video {
	videos := a.videos.Videos()
	if len(videos) > recentVideosLimit {
		videos = videos[:recentVideosLimit]
	}
	return videos
}

// StartCleanupLoop periodically removes raw uploads and locally stored media
// of finished videos.
// Video records and transcripts are kept.
func (a *App) StartCleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.cleanup(ttl)
			}
		}
	}()
}

func (a *App) cleanup(ttl time.Duration) int {
	cutoff := a.now().Add(-ttl)
	removed := 0

	for _, v := range a.videos.Videos() {
		if !v.Status.Terminal() || v.UpdatedAt.After(cutoff) {
			continue
		}
		paths := []string{v.LocalPath}
		if blob.IsLocal(v.MediaURL) {
			paths = append(paths, filepath.FromSlash(strings.TrimPrefix(v.MediaURL, blob.LocalScheme)))
		}
		for _, path := range paths {
			if path == "" {
				continue
			}
			err := os.Remove(path)
			switch {
			case err == nil:
				removed++
			case !errors.Is(err, os.ErrNotExist):
				a.logger.Warn("failed to remove upload", "video_id", v.ID, "path", path, "error", err)
			}
		}
	}

	if removed > 0 {
		a.logger.Info("cleanup completed", "removed_uploads", removed)
	}
	return removed
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." {
		return "video.bin"
	}
	return name
}

func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
