package event

import (
	"errors"
	"testing"
	"time"

	"github.com/sprucehealth/callflow/model"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		want    model.CallEvent
	}{
		{
			name:    "initiate",
			payload: `{"eventType":"initiate","callId":"c-1","from":"+15551230001","to":"+15551230002"}`,
			want: model.CallEvent{
				Type:  model.EventInbound,
				LegID: "c-1",
				From:  "+15551230001",
				To:    "+15551230002",
				At:    now,
			},
		},
		{
			name:    "redirect normalizes to inbound",
			payload: `{"eventType":"redirect","callId":"c-1"}`,
			want:    model.CallEvent{Type: model.EventInbound, LegID: "c-1", At: now},
		},
		{
			name:    "answer with tag",
			payload: `{"eventType":"answer","callId":"c-2","tag":"c-1"}`,
			want:    model.CallEvent{Type: model.EventAnswer, LegID: "c-2", Tag: "c-1", At: now},
		},
		{
			name:    "gather",
			payload: `{"eventType":"gather","callId":"c-2","tag":"c-1","digits":"1"}`,
			want:    model.CallEvent{Type: model.EventDigitsGathered, LegID: "c-2", Tag: "c-1", Digits: "1", At: now},
		},
		{
			name:    "disconnect with cause",
			payload: `{"eventType":"disconnect","callId":"c-2","tag":"c-1","cause":"timeout"}`,
			want:    model.CallEvent{Type: model.EventDisconnected, LegID: "c-2", Tag: "c-1", Cause: "timeout", At: now},
		},
		{
			name:    "recording available",
			payload: `{"eventType":"recordingAvailable","callId":"c-1","recordingId":"r-1","status":"complete"}`,
			want: model.CallEvent{
				Type:            model.EventRecordingAvailable,
				LegID:           "c-1",
				RecordingID:     "r-1",
				RecordingStatus: "complete",
				At:              now,
			},
		},
		{
			name:    "unrecognized type becomes status update",
			payload: `{"eventType":"transferComplete","callId":"c-1"}`,
			want:    model.CallEvent{Type: model.EventStatusUpdate, LegID: "c-1", At: now},
		},
		{
			name:    "event time parsed",
			payload: `{"eventType":"initiate","callId":"c-1","eventTime":"2024-03-01T11:59:30Z"}`,
			want: model.CallEvent{
				Type:  model.EventInbound,
				LegID: "c-1",
				At:    time.Date(2024, 3, 1, 11, 59, 30, 0, time.UTC),
			},
		},
		{
			name:    "bad event time falls back to now",
			payload: `{"eventType":"initiate","callId":"c-1","eventTime":"yesterday"}`,
			want:    model.CallEvent{Type: model.EventInbound, LegID: "c-1", At: now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.payload), now)
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if !got.At.Equal(tt.want.At) {
				t.Errorf("At = %v, want %v", got.At, tt.want.At)
			}
			got.At = tt.want.At
			if got != tt.want {
				t.Errorf("Normalize = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		payload string
	}{
		{"invalid json", `{"eventType":`},
		{"missing eventType", `{"callId":"c-1"}`},
		{"missing callId", `{"eventType":"initiate"}`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.payload), now)
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("Expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}
