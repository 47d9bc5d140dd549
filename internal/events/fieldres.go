package events

// AccessorDiscovered is emitted when a field resolver looks up the accessor
// for an object source. Err is set when the lookup failed.
type AccessorDiscovered struct {
	Field      string
	Accessor   string
	SourceType string
	Err        error
}
