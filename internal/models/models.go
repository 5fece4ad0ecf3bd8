package models

import (
	"encoding/json"
	"time"
)

// VideoStatus represents the current lifecycle state of an uploaded video.
type VideoStatus string

const (
	StatusUploading  VideoStatus = "uploading"
	StatusProcessing VideoStatus = "processing"
	StatusCompleted  VideoStatus = "completed"
	StatusError      VideoStatus = "error"
)

// Terminal reports whether no further transitions are expected.
func (s VideoStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// DefaultLanguage is used when the analysis result carries no locale.
const DefaultLanguage = "en"

// Video stores metadata and runtime state for one uploaded media asset.
type Video struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	UploadDate         time.Time   `json:"upload_date"`
	MediaURL           string      `json:"media_url"`
	Status             VideoStatus `json:"status"`
	UploadProgress     int         `json:"upload_progress"`
	ProcessingProgress int         `json:"processing_progress"`
	Duration           float64     `json:"duration,omitempty"`
	UploadFallback     bool        `json:"upload_fallback,omitempty"`
	Error              string      `json:"error,omitempty"`
	LocalPath          string      `json:"-"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// ProgressEvent snapshots v for progress subscribers.
func (v Video) ProgressEvent(message string) ProgressEvent {
	evt := ProgressEvent{
		ID:                 v.ID,
		Status:             v.Status,
		UploadProgress:     v.UploadProgress,
		ProcessingProgress: v.ProcessingProgress,
		Message:            message,
		Error:              v.Error,
	}
	if v.Status == StatusCompleted {
		evt.TranscriptURL = "/transcript/" + v.ID
	}
	return evt
}

// Transcript is the normalized analysis result for exactly one video.
// An empty RawStructuredData means only Content is available.
type Transcript struct {
	VideoID           string    `json:"video_id"`
	Content           string    `json:"content"`
	RawStructuredData string    `json:"raw_structured_data,omitempty"`
	Language          string    `json:"language"`
	CreatedAt         time.Time `json:"created_at"`
}

// HasStructuredData reports whether the higher-fidelity phrase list is stored.
func (t Transcript) HasStructuredData() bool {
	return t.RawStructuredData != ""
}

// Phrase is one timestamped span of recognized speech.
type Phrase struct {
	Speaker     string  `json:"speaker,omitempty"`
	StartTimeMs *int64  `json:"startTimeMs,omitempty"`
	EndTimeMs   *int64  `json:"endTimeMs,omitempty"`
	Text        string  `json:"text"`
	Locale      string  `json:"locale,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// Timed reports whether both ends of the phrase are known.
func (p Phrase) Timed() bool {
	return p.StartTimeMs != nil && p.EndTimeMs != nil
}

// StructuredData is the serialized form kept in Transcript.RawStructuredData.
type StructuredData struct {
	Phrases     []Phrase        `json:"phrases"`
	APIResponse json.RawMessage `json:"apiResponse,omitempty"`
}

// ProgressEvent is sent to clients over WebSocket.
type ProgressEvent struct {
	ID                 string      `json:"id"`
	Status             VideoStatus `json:"status"`
	UploadProgress     int         `json:"upload_progress"`
	ProcessingProgress int         `json:"processing_progress"`
	Message            string      `json:"message,omitempty"`
	TranscriptURL      string      `json:"transcript_url,omitempty"`
	Error              string      `json:"error,omitempty"`
}

// Severity classifies a user-facing notification.
type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityDestructive Severity = "destructive"
)

// Notification is a fire-and-forget user-facing signal.
type Notification struct {
	VideoID     string   `json:"video_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}
