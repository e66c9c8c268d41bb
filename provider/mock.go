package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// MockClient is a test double recording every provider call
type MockClient struct {
	mu sync.Mutex

	PlacedCalls   []PlaceCallParams
	ModifiedCalls []ModifiedCall
	Fetches       []RecordingFetch

	// PlaceCallFunc allows tests to control responses
	PlaceCallFunc func(params PlaceCallParams) (string, error)
	// ModifyCallFunc allows tests to control responses
	ModifyCallFunc func(legID string, params ModifyCallParams) error
	// FetchRecordingFunc allows tests to control responses
	FetchRecordingFunc func(callID, recordingID string) (io.ReadCloser, error)

	legCounter uint64
}

// ModifiedCall records one ModifyCall invocation
type ModifiedCall struct {
	LegID  string
	Params ModifyCallParams
	Time   time.Time
}

// RecordingFetch records one FetchRecording invocation
type RecordingFetch struct {
	CallID      string
	RecordingID string
}

// NewMockClient creates a mock that succeeds on every call
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) PlaceCall(_ context.Context, params PlaceCallParams) (string, error) {
	m.mu.Lock()
	m.PlacedCalls = append(m.PlacedCalls, params)
	fn := m.PlaceCallFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(params)
	}
	return fmt.Sprintf("mock-leg-%d", atomic.AddUint64(&m.legCounter, 1)), nil
}

func (m *MockClient) ModifyCall(_ context.Context, legID string, params ModifyCallParams) error {
	m.mu.Lock()
	m.ModifiedCalls = append(m.ModifiedCalls, ModifiedCall{LegID: legID, Params: params, Time: time.Now()})
	fn := m.ModifyCallFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(legID, params)
	}
	return nil
}

func (m *MockClient) FetchRecording(_ context.Context, callID, recordingID string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.Fetches = append(m.Fetches, RecordingFetch{CallID: callID, RecordingID: recordingID})
	fn := m.FetchRecordingFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(callID, recordingID)
	}
	return io.NopCloser(bytes.NewReader([]byte("RIFF"))), nil
}

// Reset clears all recorded calls
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlacedCalls = nil
	m.ModifiedCalls = nil
	m.Fetches = nil
}

var _ Client = (*MockClient)(nil)
