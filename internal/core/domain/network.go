package domain

// NetworkState is the connectivity state seen by the application.
type NetworkState string

// The two connectivity states.
const (
	Online  NetworkState = "online"
	Offline NetworkState = "offline"
)

// String returns the string representation.
func (s NetworkState) String() string {
	return string(s)
}

// IsValid returns true for Online and Offline.
func (s NetworkState) IsValid() bool {
	return s == Online || s == Offline
}
