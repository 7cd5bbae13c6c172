package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kikiluvv/lofiloop/internal/clips"
	"github.com/kikiluvv/lofiloop/internal/timeline"
)

func videoClip(d time.Duration) *clips.Clip {
	return &clips.Clip{Path: "videos/animated_picture.mp4", Kind: clips.KindVideo, Duration: d, Width: 1920, Height: 1080, FPS: 30}
}

func audioClip(name string, d time.Duration) *clips.Clip {
	return &clips.Clip{Path: name, Kind: clips.KindAudio, Duration: d}
}

// fakeDecoder reports fixed durations per path
type fakeDecoder struct {
	durations map[string]time.Duration
	err       error
}

func (f *fakeDecoder) Decode(_ context.Context, path string) (*clips.Clip, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.durations[path]
	if !ok {
		return nil, errors.New("unknown file " + path)
	}
	kind := clips.KindAudio
	if filepath.Ext(path) == ".mp4" {
		kind = clips.KindVideo
	}
	return &clips.Clip{Path: path, Kind: kind, Duration: d}, nil
}

// fakeEncoder records requests and writes a marker file on success
type fakeEncoder struct {
	mu       sync.Mutex
	requests []*timeline.RenderRequest
	err      error
	block    chan struct{}
}

func (f *fakeEncoder) Encode(_ context.Context, req *timeline.RenderRequest) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(req.OutputPath, []byte("rendered"), 0644)
}

func (f *fakeEncoder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakePreviewer counts previews and can fail
type fakePreviewer struct {
	calls   int
	err     error
	poster  string
	cleaned bool
}

func (f *fakePreviewer) Preview(context.Context, *timeline.RenderRequest) (*Preview, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Preview{PosterPath: f.poster, Cleanup: func() { f.cleaned = true }}, nil
}

// scriptedConfirmer answers with a fixed value and records the prompt
type scriptedConfirmer struct {
	answer bool
	err    error
	prompt Prompt
	asked  int
}

func (s *scriptedConfirmer) Confirm(_ context.Context, p Prompt) (bool, error) {
	s.asked++
	s.prompt = p
	return s.answer, s.err
}

// reverseShuffler is a deterministic permutation that records its use
type reverseShuffler struct {
	calls int
}

func (r *reverseShuffler) Shuffle(n int, swap func(i, j int)) {
	r.calls++
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}
