package bar

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// WatchSignals turns process signals into scheduler events until ctx is
// done:
//
//	SIGUSR1              refresh every block
//	SIGRTMIN+N           refresh blocks configured with signal = N
//	SIGINT SIGTERM SIGHUP  immediate shutdown
//
// Call it after every block has been added.
func (s *Scheduler) WatchSignals(ctx context.Context) {
	rt := realtimeSignals(s.Signals())

	sigs := []os.Signal{unix.SIGUSR1, unix.SIGINT, unix.SIGTERM, unix.SIGHUP}
	for sig := range rt {
		sigs = append(sigs, sig)
	}

	ch := make(chan os.Signal, 8)
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				switch sig {
				case unix.SIGUSR1:
					s.Refresh(Refresh{All: true})
				case unix.SIGINT, unix.SIGTERM, unix.SIGHUP:
					s.Shutdown(ShutdownImmediate, sig.String())
				default:
					if n, ok := rt[sig]; ok {
						s.Refresh(Refresh{Signal: n})
					}
				}
			}
		}
	}()
}
