package serve

import (
	"crypto/tls"
	"errors"
	"net"
	"os"
	"sync"

	"github.com/tedsuo/ifrit"
	"go.uber.org/zap"

	"github.com/hearthlabs/hearth/conn"
	"github.com/hearthlabs/hearth/logger"
)

// ConnectionHandler processes one established stream to completion.
// *server.Server satisfies it.
type ConnectionHandler interface {
	HandleConnection(raw conn.RawConn) error
}

// ListenerRunner accepts connections and dispatches each to the handler
// through a Spawner. It implements ifrit.Runner: Run blocks until a signal
// arrives, then stops accepting and waits for in-flight connections.
type ListenerRunner struct {
	listener net.Listener
	handler  ConnectionHandler
	spawner  Spawner
	logger   logger.Logger

	stopping bool
	stopLock sync.Mutex
	handleWG sync.WaitGroup
}

var _ ifrit.Runner = &ListenerRunner{}

// NewListenerRunner builds a runner over an already-bound listener. A nil
// spawner defaults to one goroutine per connection.
func NewListenerRunner(l net.Listener, h ConnectionHandler, s Spawner, lg logger.Logger) *ListenerRunner {
	if s == nil {
		s = GoSpawner{}
	}
	if lg == nil {
		lg = logger.NewNopLogger()
	}
	return &ListenerRunner{listener: l, handler: h, spawner: s, logger: lg}
}

// ListenTCP binds a TCP listener.
func ListenTCP(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// ListenUnix binds a Unix domain socket listener.
func ListenUnix(path string) (net.Listener, error) {
	return net.Listen("unix", path)
}

// WrapTLS layers a host-provided TLS configuration over l. Certificate
// loading stays with the host.
func WrapTLS(l net.Listener, cfg *tls.Config) net.Listener {
	return tls.NewListener(l, cfg)
}

// Run satisfies ifrit.Runner.
func (r *ListenerRunner) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	errChan := make(chan error, 1)
	go r.acceptLoop(errChan)

	close(ready)
	r.logger.Info("serving", zap.String("address", r.listener.Addr().String()))

	select {
	case sig := <-signals:
		r.logger.Info("draining", zap.String("signal", sig.String()))
		r.stop()
		r.handleWG.Wait()
		return nil
	case err := <-errChan:
		r.stop()
		r.handleWG.Wait()
		return err
	}
}

func (r *ListenerRunner) acceptLoop(errChan chan<- error) {
	for {
		netConn, err := r.listener.Accept()
		if err != nil {
			if r.isStopping() || errors.Is(err, net.ErrClosed) {
				errChan <- nil
				return
			}
			errChan <- err
			return
		}
		r.handleWG.Add(1)
		r.spawner.Spawn(func() {
			defer r.handleWG.Done()
			if herr := r.handler.HandleConnection(netConn); herr != nil {
				r.logger.Debug("connection-ended-with-error", zap.Error(herr))
			}
		})
	}
}

func (r *ListenerRunner) stop() {
	r.stopLock.Lock()
	defer r.stopLock.Unlock()
	if r.stopping {
		return
	}
	r.stopping = true
	r.listener.Close()
}

func (r *ListenerRunner) isStopping() bool {
	r.stopLock.Lock()
	defer r.stopLock.Unlock()
	return r.stopping
}
