package supervisor

import (
	"io"
	"os"
	"time"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

const filePollInterval = 500 * time.Millisecond

// TailRaw returns up to the last maxBytes of a service's raw log file. A
// missing log file (never started) yields an empty slice, not an error.
func (sm *ServiceManager) TailRaw(id string, maxBytes int) ([]byte, error) {
	if _, err := sm.store.Load(id); err != nil {
		return nil, err
	}

	path := sm.store.LogPath(id)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []byte{}, nil
		}
		return nil, apierr.Wrap(apierr.IO, id, "open log", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, apierr.Wrap(apierr.IO, id, "stat log", err)
	}
	size := info.Size()
	if maxBytes <= 0 || int64(maxBytes) > size {
		maxBytes = int(size)
	}

	buf := make([]byte, maxBytes)
	if _, err := f.ReadAt(buf, size-int64(maxBytes)); err != nil && err != io.EOF {
		return nil, apierr.Wrap(apierr.IO, id, "read log", err)
	}
	return buf, nil
}

// FollowRaw returns a backlog snapshot plus a live subscription for id. When
// a local registry handle exists (the common case — this supervisor is
// single-process) the subscription rides the in-memory broadcaster, which
// carries lag notices if the caller falls behind. When no handle exists the
// caller gets the backlog only, with a nil subscription; FollowRaw does not
// poll the log file in that case.
func (sm *ServiceManager) FollowRaw(id string) (backlog []byte, sub *OutputSubscription, err error) {
	if _, err := sm.store.Load(id); err != nil {
		return nil, nil, err
	}
	backlog, err = sm.TailRaw(id, logRetainBytes)
	if err != nil {
		return nil, nil, err
	}
	h, ok := sm.reg.get(id)
	if !ok {
		return backlog, nil, nil
	}
	return backlog, h.Subscribe(), nil
}

// FollowFile polls a log file for growth and streams newly appended bytes to
// out until stop is closed. It is a standalone helper: neither FollowRaw nor
// the HTTP follow endpoint calls it, so a follow stream for a service with
// no registry handle ends after the backlog.
func FollowFile(path string, out chan<- []byte, stop <-chan struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	buf := make([]byte, readChunkSize)
	ticker := time.NewTicker(filePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			for {
				n, rerr := f.ReadAt(buf, pos)
				if n > 0 {
					chunk := append([]byte(nil), buf[:n]...)
					pos += int64(n)
					select {
					case out <- chunk:
					case <-stop:
						return nil
					}
				}
				if rerr != nil {
					break
				}
			}
		}
	}
}
