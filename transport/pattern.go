package transport

import "fmt"

// Pattern is a scalability protocol a socket speaks.
type Pattern int

const (
	Pair Pattern = iota + 1
	Pub
	Sub
	Push
	Pull
)

var patternNames = map[Pattern]string{
	Pair: "pair",
	Pub:  "pub",
	Sub:  "sub",
	Push: "push",
	Pull: "pull",
}

// ParsePattern returns the Pattern with the given lower-case name.
func ParsePattern(name string) (Pattern, error) {
	for p, n := range patternNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown pattern %q", name)
}

func (p Pattern) String() string {
	if name, ok := patternNames[p]; ok {
		return name
	}
	return fmt.Sprintf("pattern(%d)", int(p))
}

// CanSend reports whether sockets of this pattern can send messages.
func (p Pattern) CanSend() bool {
	return p == Pair || p == Pub || p == Push
}

// CanRecv reports whether sockets of this pattern can receive messages.
func (p Pattern) CanRecv() bool {
	return p == Pair || p == Sub || p == Pull
}

// Peer reports whether a socket of pattern p may be connected to a socket of pattern q.
func (p Pattern) Peer(q Pattern) bool {
	switch p {
	case Pair:
		return q == Pair
	case Pub:
		return q == Sub
	case Sub:
		return q == Pub
	case Push:
		return q == Pull
	case Pull:
		return q == Push
	}
	return false
}
