package types

// Metadata represents free-form provider key-value pairs
type Metadata map[string]string

// Get returns the value for key or the empty string
func (m Metadata) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}
