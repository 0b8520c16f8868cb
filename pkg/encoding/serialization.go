package encoding

// Serializable is implemented by the wire messages of this package. Pose
// messages and relay frames both round-trip through it.
type Serializable[T any] interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}
