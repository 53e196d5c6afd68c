//go:build !unix

package inproc

import (
	E "github.com/sagernet/sing/common/exceptions"

	"github.com/arvidfm/nanogio/transport"
)

type signal struct {
	fd int
}

func newSignal() (*signal, error) {
	return nil, E.Cause(transport.ErrNotSupported, "readiness descriptors on this platform")
}

func (s *signal) raise() {}

func (s *signal) clear() {}

func (s *signal) close() error {
	return nil
}
