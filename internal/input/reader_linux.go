//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// pollTimeoutMS bounds how long epoll_wait blocks before ctx is rechecked.
const pollTimeoutMS = 200

// Run reads events from the given evdev devices until ctx is canceled.
// All devices share one epoll instance.
func (s *Source) Run(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return ErrNoDevices
	}

	files := make(map[int]*os.File, len(paths))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open input device: %w", err)
		}
		fd := int(f.Fd())
		files[fd] = f

		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", p, err)
		}
		s.logger.Info("input device opened", "path", p)
	}

	ready := make([]unix.EpollEvent, 16)
	buf := make([]byte, EventSize*64)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, ready, pollTimeoutMS)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			f := files[int(ready[i].Fd)]
			if ready[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("input device error or hangup: %s", f.Name())
			}

			read, err := f.Read(buf)
			if err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}
			for off := 0; off+EventSize <= read; off += EventSize {
				ev, err := decodeEvent(buf[off : off+EventSize])
				if err != nil {
					continue
				}
				s.Handle(ev)
			}
		}
	}
}
