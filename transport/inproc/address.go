package inproc

import (
	"strings"

	E "github.com/sagernet/sing/common/exceptions"

	"github.com/arvidfm/nanogio/transport"
)

// Scheme prefixes every address understood by this transport.
const Scheme = "inproc://"

func parseAddress(addr string) (string, error) {
	name, ok := strings.CutPrefix(addr, Scheme)
	if !ok {
		return "", E.Cause(transport.ErrProtocolNotSupported, addr)
	}
	if name == "" {
		return "", E.Cause(transport.ErrInvalidAddress, addr)
	}
	return name, nil
}
