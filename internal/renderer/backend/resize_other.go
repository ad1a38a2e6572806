//go:build !unix

package backend

// watchResize is a no-op where SIGWINCH does not exist; the renderer's
// periodic size check still detects resizes.
func watchResize(stop <-chan struct{}, done chan<- struct{}, _ func() (int, int, error), _ chan ResizeEvent) {
	defer close(done)
	<-stop
}
