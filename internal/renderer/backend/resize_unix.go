//go:build unix

package backend

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// watchResize forwards SIGWINCH as ResizeEvents until stop is closed.
func watchResize(stop <-chan struct{}, done chan<- struct{}, size func() (int, int, error), out chan ResizeEvent) {
	defer close(done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGWINCH)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-stop:
			return
		case <-sigCh:
			w, h, err := size()
			if err != nil {
				continue
			}
			sendLatest(out, ResizeEvent{Width: w, Height: h})
		}
	}
}
