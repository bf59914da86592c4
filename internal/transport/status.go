package transport

// Status is the observable state of a Connection.
type Status int

const (
	StatusConnecting Status = iota
	StatusOpen
	StatusClosed
	StatusErrored
)

// String returns the connectivity string shown to the user.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "connected"
	case StatusClosed:
		return "disconnected"
	case StatusErrored:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusErrored
}
