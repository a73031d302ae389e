package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"restaurante/internal/models"
)

// TerminalBell is a ToneGenerator that rings the terminal bell. It cannot
// shape tones, so every tone collapses to one bell per call.
type TerminalBell struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalBell rings the bell on out.
func NewTerminalBell(out io.Writer) *TerminalBell {
	return &TerminalBell{out: out}
}

func (b *TerminalBell) Tone(_ Waveform, _ float64, d time.Duration, _ float64) error {
	if b == nil || b.out == nil {
		return models.ErrAudioUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.WriteString(b.out, "\a"); err != nil {
		return fmt.Errorf("%w: %v", models.ErrAudioUnavailable, err)
	}
	time.Sleep(d)
	return nil
}

// Unsupported is a platform without clip playback or OS notifications.
type Unsupported struct{}

func (Unsupported) PlayClip([]byte) error { return models.ErrAudioUnavailable }

func (Unsupported) Permission() Permission { return PermissionUnsupported }

func (Unsupported) RequestPermission(context.Context) (Permission, error) {
	return PermissionUnsupported, models.ErrPermissionDenied
}

func (Unsupported) Show(Notification) (NotificationHandle, error) {
	return nil, models.ErrPermissionDenied
}
