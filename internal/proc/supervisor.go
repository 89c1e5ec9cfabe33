// Package proc tracks child processes started on behalf of tool calls:
// UI preview servers and container deployments. Entries are keyed by
// session id and removed by an explicit stop or, for processes that die
// on their own, by the liveness sweep.
package proc

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Session records one managed child. Cmd is nil for detached
// deployments whose lifecycle belongs to the container toolchain.
type Session struct {
	ID        string
	Kind      string
	AppPath   string
	Dir       string
	URL       string
	Port      int
	StartedAt time.Time

	Cmd  *exec.Cmd
	done chan struct{}
}

// Alive reports whether the child process is still running. Detached
// sessions are always considered alive.
func (s *Session) Alive() bool {
	if s.Cmd == nil {
		return true
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// WaitDone blocks until the child exits or the timeout elapses.
func (s *Session) WaitDone(timeout time.Duration) bool {
	if s.Cmd == nil {
		return true
	}
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Supervisor owns the session table.
type Supervisor struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *zap.Logger
	sweeper  *cron.Cron
}

// NewSupervisor builds an empty supervisor.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{sessions: map[string]*Session{}, logger: logger}
}

// NewSessionID builds a unique token from a timestamp and a random
// suffix, e.g. "ui-1756100000000-3f1c9a2b".
func NewSessionID(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Track registers a started session. For process-backed sessions a
// waiter goroutine reaps the exit status so Alive stays accurate and
// the child never becomes a zombie.
func (s *Supervisor) Track(sess *Session) {
	sess.StartedAt = time.Now()
	if sess.Cmd != nil {
		sess.done = make(chan struct{})
		cmd := sess.Cmd
		done := sess.done
		go func() {
			_ = cmd.Wait()
			close(done)
		}()
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.logger.Info("tracking session",
		zap.String("session_id", sess.ID),
		zap.String("kind", sess.Kind),
		zap.Int("port", sess.Port))
}

// Get looks up a session by id.
func (s *Supervisor) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// List returns tracked sessions sorted by id.
func (s *Supervisor) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove drops a tracking entry without touching the process.
func (s *Supervisor) Remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Stop terminates a tracked process: SIGTERM, bounded wait, SIGKILL if
// the grace period elapses, then the entry is removed. Unknown ids are
// an error for the caller to report, never a fatal condition.
func (s *Supervisor) Stop(id string, grace time.Duration) error {
	sess, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("no active session with id %s", id)
	}
	if sess.Cmd != nil && sess.Alive() {
		if err := sess.Cmd.Process.Signal(termSignal()); err != nil {
			s.logger.Warn("terminate failed, killing", zap.String("session_id", id), zap.Error(err))
		}
		if !sess.WaitDone(grace) {
			_ = sess.Cmd.Process.Kill()
			sess.WaitDone(grace)
		}
	}
	s.Remove(id)
	s.logger.Info("stopped session", zap.String("session_id", id))
	return nil
}

// StopAll terminates every process-backed session. Called on server
// shutdown so no child is leaked past input-stream closure.
func (s *Supervisor) StopAll(grace time.Duration) {
	for _, sess := range s.List() {
		if sess.Cmd == nil {
			s.Remove(sess.ID)
			continue
		}
		_ = s.Stop(sess.ID, grace)
	}
}

// StartSweeper begins the periodic liveness sweep that reaps entries
// whose process exited outside an explicit stop. Detached sessions are
// exempt.
func (s *Supervisor) StartSweeper(interval time.Duration) {
	if s.sweeper != nil {
		return
	}
	s.sweeper = cron.New()
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.sweeper.AddFunc(spec, s.Sweep); err != nil {
		s.logger.Warn("sweeper not started", zap.Error(err))
		return
	}
	s.sweeper.Start()
}

// StopSweeper halts the sweep schedule.
func (s *Supervisor) StopSweeper() {
	if s.sweeper != nil {
		s.sweeper.Stop()
		s.sweeper = nil
	}
}

func termSignal() os.Signal {
	return syscall.SIGTERM
}

// Sweep removes dead entries once. Exposed for tests and for the cron
// schedule.
func (s *Supervisor) Sweep() {
	for _, sess := range s.List() {
		if sess.Cmd == nil || sess.Alive() {
			continue
		}
		s.Remove(sess.ID)
		s.logger.Info("reaped dead session",
			zap.String("session_id", sess.ID),
			zap.String("kind", sess.Kind))
	}
}
