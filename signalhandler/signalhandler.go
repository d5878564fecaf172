package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/TuringFantasy/simple-dedupe/logging"
)

// NotifyContext returns a context that is canceled on SIGINT or SIGTERM.
// A second signal exits immediately, since a native OpenCV call in flight
// cannot observe the context. Calling the returned cancel func stops signal
// delivery.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop, _ := notifyContext(parent)
	return ctx, stop
}

// notifyContext also returns a channel closed once signal handling has ended
func notifyContext(parent context.Context) (context.Context, context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() { close(stopped) })
		cancel()
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logging.LogInfo("Received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}

		select {
		case sig := <-sigChan:
			logging.LogWarning("Received second %s, exiting", sig)
			os.Exit(1)
		case <-stopped:
		case <-parent.Done():
		}
	}()

	return ctx, stop, finished
}

// GetOptimalProcs returns the optimal number of worker goroutines for the system
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	// For image processing with CGo, using too many goroutines can cause issues
	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}

	return maxProcs
}
