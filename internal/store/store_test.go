package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

func TestVideoUpsertAndFind(t *testing.T) {
	s := New()
	s.UpsertVideo(models.Video{ID: "a", Name: "a.mp4", Status: models.StatusUploading})

	v, ok := s.FindVideo("a")
	require.True(t, ok)
	assert.Equal(t, "a.mp4", v.Name)

	v.Status = models.StatusCompleted
	stored, _ := s.FindVideo("a")
	assert.Equal(t, models.StatusUploading, stored.Status, "callers receive copies")

	s.UpsertVideo(v)
	stored, _ = s.FindVideo("a")
	assert.Equal(t, models.StatusCompleted, stored.Status)

	_, ok = s.FindVideo("missing")
	assert.False(t, ok)
}

func TestListVideosByRecency(t *testing.T) {
	s := New()
	base := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)
	s.UpsertVideo(models.Video{ID: "old", UploadDate: base})
	s.UpsertVideo(models.Video{ID: "tie-1", UploadDate: base.Add(time.Minute)})
	s.UpsertVideo(models.Video{ID: "new", UploadDate: base.Add(time.Hour)})
	s.UpsertVideo(models.Video{ID: "tie-2", UploadDate: base.Add(time.Minute)})
	// re-upserting keeps the original insertion position
	s.UpsertVideo(models.Video{ID: "tie-1", UploadDate: base.Add(time.Minute), Name: "renamed"})

	var ids []string
	for _, v := range s.ListVideosByRecency() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"new", "tie-1", "tie-2", "old"}, ids)
}

func TestUpdateVideoIsAtomicPerID(t *testing.T) {
	s := New()
	s.UpsertVideo(models.Video{ID: "v"})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.UpdateVideo("v", func(v *models.Video) { v.UploadProgress++ })
		}()
	}
	wg.Wait()

	v, _ := s.FindVideo("v")
	assert.Equal(t, 100, v.UploadProgress)

	_, ok := s.UpdateVideo("missing", func(*models.Video) { t.Fatal("must not be called") })
	assert.False(t, ok)
}

func TestTranscriptLastWriteWins(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.UpsertTranscript(models.Transcript{VideoID: "v", Content: fmt.Sprintf("rev %d", i)})
	}

	tr, ok := s.FindTranscript("v")
	require.True(t, ok)
	assert.Equal(t, "rev 2", tr.Content)

	_, ok = s.FindTranscript("other")
	assert.False(t, ok)
}
