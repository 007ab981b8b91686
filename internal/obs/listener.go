package obs

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	_defaultReadTimeout  = 5 * time.Second
	_defaultWriteTimeout = 10 * time.Second
)

// Listener serves /metrics on its own port, away from the API server.
// promhttp is net/http native, so the listener is too.
type Listener struct {
	server *http.Server
	notify chan error
}

func NewListener(port string, gatherer prometheus.Gatherer) *Listener {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Listener{
		server: &http.Server{
			Addr:         net.JoinHostPort("", port),
			Handler:      mux,
			ReadTimeout:  _defaultReadTimeout,
			WriteTimeout: _defaultWriteTimeout,
		},
		notify: make(chan error, 1),
	}
}

func (l *Listener) Start() {
	go func() {
		l.notify <- l.server.ListenAndServe()
		close(l.notify)
	}()
}

func (l *Listener) Notify() <-chan error {
	return l.notify
}

func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}
