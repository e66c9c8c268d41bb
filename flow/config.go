package flow

import (
	"fmt"
	"time"
)

// Config carries the tunables and callback URLs a transition needs to
// build its verbs and provider calls. It is immutable after construction.
type Config struct {
	// ForwardTo is the number outbound legs are dialed to
	ForwardTo string
	// ApplicationID identifies the provider voice application
	ApplicationID string

	// AcceptDigit is compared exact-string against gathered digits;
	// everything else (including empty) is a decline
	AcceptDigit string

	RingDuration      time.Duration
	OutboundTimeout   time.Duration
	GatherTimeout     time.Duration
	PlaybackTimeout   time.Duration
	RecordMaxDuration time.Duration
	TerminatingDigits string

	// Callback URLs, absolute
	AnswerURL             string
	DisconnectURL         string
	GatherURL             string
	VoicemailURL          string
	RecordingAvailableURL string
	PlaybackMenuURL       string

	BeepURL string

	// RecordingMediaBase is the provider media URL prefix used to build
	// playback URLs for fetched recordings
	RecordingMediaBase string
}

// DefaultConfig returns the flow tunables used when the configuration
// file leaves them unset.
func DefaultConfig() Config {
	return Config{
		AcceptDigit:       "1",
		RingDuration:      20 * time.Second,
		OutboundTimeout:   15 * time.Second,
		GatherTimeout:     10 * time.Second,
		PlaybackTimeout:   15 * time.Second,
		RecordMaxDuration: 30 * time.Second,
		TerminatingDigits: "#",
	}
}

// RecordingMediaURL builds the playback URL for a stored recording
func (c Config) RecordingMediaURL(callID, recordingID string) string {
	return fmt.Sprintf("%s/%s/%s/media", c.RecordingMediaBase, callID, recordingID)
}
