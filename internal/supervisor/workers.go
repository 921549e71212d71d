package supervisor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	logMaxBytes    = 2 * 1024 * 1024
	logRetainBytes = 1 * 1024 * 1024
	logCheckEvery  = 10 * 1024
	readChunkSize  = 4096

	truncatedSentinel = "[... log truncated ...]\n"
)

// rollingLogWriter appends raw PTY output to a per-service log file,
// checking its size every ~10KiB of writes and rolling it once it passes
// logMaxBytes: retain the trailing logRetainBytes, aligned forward to the
// next newline, prefixed with truncatedSentinel (spec.md §4.7).
type rollingLogWriter struct {
	path       string
	file       *os.File
	sinceCheck int
}

func newRollingLogWriter(path string) (*rollingLogWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &rollingLogWriter{path: path, file: f}, nil
}

func (w *rollingLogWriter) Write(p []byte) error {
	if _, err := w.file.Write(p); err != nil {
		return err
	}
	w.sinceCheck += len(p)
	if w.sinceCheck < logCheckEvery {
		return nil
	}
	w.sinceCheck = 0
	return w.rollIfNeeded()
}

func (w *rollingLogWriter) rollIfNeeded() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() <= logMaxBytes {
		return nil
	}
	return w.roll()
}

func (w *rollingLogWriter) roll() error {
	_ = w.file.Close()

	data, err := os.ReadFile(w.path)
	if err != nil {
		return w.reopen()
	}
	if len(data) > logRetainBytes {
		data = data[len(data)-logRetainBytes:]
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
			data = data[idx+1:]
		}
	}

	out := make([]byte, 0, len(truncatedSentinel)+len(data))
	out = append(out, []byte(truncatedSentinel)...)
	out = append(out, data...)
	_ = os.WriteFile(w.path, out, 0o644)

	return w.reopen()
}

func (w *rollingLogWriter) reopen() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	return nil
}

func (w *rollingLogWriter) Close() { _ = w.file.Close() }

// truncateLog empties a service's log file; used for clear_log_on_start.
func truncateLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}

// inputWorker drains the MPSC input channel into the PTY master, one write
// per message (an os.File write has no internal buffering layer to flush).
// It exits when the channel is closed or a write fails — in practice the
// latter, once outputWorkerAndWait closes the PTY master on process exit.
func (sm *ServiceManager) inputWorker(id string, h *RuntimeHandle) {
	for data := range h.input {
		if _, err := h.ptm.Write(data); err != nil {
			return
		}
	}
}

// outputWorkerAndWait is both the PTY reader (4KiB chunks, broadcast to
// subscribers and appended to the rolling log) and the post-spawn waiter: it
// blocks on the read loop until the PTY master closes (process exited),
// reaps the child, appends an exit sentinel line, tears down the registry
// entry and pidfile, and — if the manifest requests it and the exit was not
// operator-requested — re-spawns the service after a backoff delay. This is
// the only automatic restart path (spec.md §4.6, §5).
func (sm *ServiceManager) outputWorkerAndWait(id string, h *RuntimeHandle, m Manifest) {
	logPath := sm.store.LogPath(id)
	w, err := newRollingLogWriter(logPath)
	if err != nil {
		sm.log.Warn().Err(err).Str("service_id", id).Msg("could not open log file")
	}

	buf := make([]byte, readChunkSize)
	for {
		n, rerr := h.ptm.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if w != nil {
				_ = w.Write(chunk)
			}
			h.broadcaster.Publish(chunk)
		}
		if rerr != nil {
			break
		}
	}
	_ = h.ptm.Close()
	if w != nil {
		w.Close()
	}

	waitErr := h.cmd.Wait()
	appendExitLine(logPath, waitErr)

	sm.reg.remove(id)
	_ = removePidFile(sm.store.PidPath(id))
	close(h.processDone)

	if m.AutoRestart && !h.stopRequested.Load() {
		delay := sm.backoff.next(id)
		sm.metrics.AutoRestarted(id)
		time.Sleep(delay)
		if _, err := sm.Start(id); err != nil {
			sm.log.Warn().Err(err).Str("service_id", id).Msg("auto-restart failed")
		}
	}
}

func appendExitLine(logPath string, waitErr error) {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "process exited: %s\n", describeExit(waitErr))
}

func describeExit(waitErr error) string {
	if waitErr == nil {
		return "status 0"
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return fmt.Sprintf("status %d", exitErr.ExitCode())
	}
	return waitErr.Error()
}
