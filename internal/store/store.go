// Package store is the authoritative in-memory collection of videos and
// transcripts. Records are handed out as copies; mutation goes through
// UpdateVideo so that a read-modify-write on one identifier is atomic.
package store

import (
	"sort"
	"sync"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

type videoEntry struct {
	video models.Video
	seq   uint64
}

type Store struct {
	mu          sync.RWMutex
	seq         uint64
	videos      map[string]*videoEntry
	transcripts map[string]models.Transcript
}

func New() *Store {
	return &Store{
		videos:      make(map[string]*videoEntry),
		transcripts: make(map[string]models.Transcript),
	}
}

// UpsertVideo inserts v or replaces the record with the same ID. A replaced
// record keeps its original insertion position.
func (s *Store) UpsertVideo(v models.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.videos[v.ID]; ok {
		e.video = v
		return
	}
	s.seq++
	s.videos[v.ID] = &videoEntry{video: v, seq: s.seq}
}

// UpdateVideo applies fn to the stored video under the write lock and returns
// the updated copy. It reports false when id is unknown.
func (s *Store) UpdateVideo(id string, fn func(*models.Video)) (models.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.videos[id]
	if !ok {
		return models.Video{}, false
	}
	fn(&e.video)
	return e.video, true
}

func (s *Store) FindVideo(id string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.videos[id]
	if !ok {
		return models.Video{}, false
	}
	return e.video, true
}

// ListVideosByRecency returns all videos, newest upload first. Videos with
// the same upload date keep insertion order.
func (s *Store) ListVideosByRecency() []models.Video {
	s.mu.RLock()
	entries := make([]videoEntry, 0, len(s.videos))
	for _, e := range s.videos {
		entries = append(entries, *e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.video.UploadDate.Equal(b.video.UploadDate) {
			return a.video.UploadDate.After(b.video.UploadDate)
		}
		return a.seq < b.seq
	})

	videos := make([]models.Video, len(entries))
	for i, e := range entries {
		videos[i] = e.video
	}
	return videos
}

// UpsertTranscript stores t keyed by its video; the last write wins.
func (s *Store) UpsertTranscript(t models.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[t.VideoID] = t
}

func (s *Store) FindTranscript(videoID string) (models.Transcript, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transcripts[videoID]
	return t, ok
}
