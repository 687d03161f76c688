package opsgate

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/opsgate/internal/sysinfo"
)

type staticSampler struct{}

func (staticSampler) Sample(_ context.Context) (sysinfo.Sample, error) {
	return sysinfo.Sample{CPUPercent: 5, MemoryPercent: 10}, nil
}

type captureSink struct {
	mu   sync.Mutex
	sent []string
}

func (s *captureSink) Send(_ context.Context, _, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func TestFacadeActionRouting(t *testing.T) {
	e, err := New(nil, WithSampler(staticSampler{}))
	require.NoError(t, err)

	s := e.HandleAction(context.Background(), "alice", "main:menu")
	assert.Equal(t, "main:menu", s.ID)

	s = e.HandleText(context.Background(), "alice", "hello")
	assert.Equal(t, "main:menu", s.ID)
}

func TestFacadeJobRegistry(t *testing.T) {
	e, err := New(nil, WithSampler(staticSampler{}))
	require.NoError(t, err)

	require.NoError(t, e.Registry().Register(Job{ID: "job-1", Status: "processing"}))
	s := e.HandleAction(context.Background(), "alice", "main:status")
	assert.Contains(t, s.Body, "Active jobs: 1")
}

func TestFacadeAlert(t *testing.T) {
	sink := &captureSink{}
	e, err := New(nil, WithSampler(staticSampler{}), WithAlertSink(sink))
	require.NoError(t, err)

	e.Alert(context.Background(), AlertEvent{Kind: "info", Message: "hello"}, "")
	require.Len(t, sink.sent, 1)
	assert.Contains(t, sink.sent[0], "hello")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.toml")
	assert.Error(t, err)
}
