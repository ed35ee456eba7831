//go:build linux

package loop

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollWaiter is the Linux readiness waiter, grounded on
// infrastructure/PAL/network/linux/epoll/tun.go's epoll-instance-per-fd
// pattern, generalized to watch the listener socket fd and the TUN fd in
// one epoll set rather than splitting read/write per device.
type epollWaiter struct {
	ep         int
	listenerFd int32
	tunFd      int32
}

// NewEpollWaiter registers listenerFd and tunFd for read readiness on a
// fresh epoll instance.
func NewEpollWaiter(listenerFd, tunFd int) (Waiter, error) {
	ep, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	w := &epollWaiter{ep: ep, listenerFd: int32(listenerFd), tunFd: int32(tunFd)}
	if err := unix.EpollCtl(ep, unix.EPOLL_CTL_ADD, listenerFd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLERR | unix.EPOLLHUP,
		Fd:     w.listenerFd,
	}); err != nil {
		_ = unix.Close(ep)
		return nil, err
	}
	if err := unix.EpollCtl(ep, unix.EPOLL_CTL_ADD, tunFd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLERR | unix.EPOLLHUP,
		Fd:     w.tunFd,
	}); err != nil {
		_ = unix.Close(ep)
		return nil, err
	}
	return w, nil
}

func (w *epollWaiter) Wait(timeout time.Duration) (listenerReady, tunReady bool, err error) {
	var events [2]unix.EpollEvent
	ms := int(timeout / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	n, err := unix.EpollWait(w.ep, events[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return false, false, nil
		}
		return false, false, err
	}
	for i := 0; i < n; i++ {
		switch events[i].Fd {
		case w.listenerFd:
			listenerReady = true
		case w.tunFd:
			tunReady = true
		}
	}
	return listenerReady, tunReady, nil
}

func (w *epollWaiter) Close() error {
	return unix.Close(w.ep)
}
