package redis

const (
	// KeyPrefixPaste is the prefix for paste hashes
	KeyPrefixPaste = "blink:paste:"

	// Hash fields of a paste
	fieldData  = "data"  // msgpack-encoded immutable record
	fieldExp   = "exp"   // expires_at in epoch ms, absent = never
	fieldViews = "views" // remaining views, absent = unlimited
)

// PasteKey returns the Redis key for a paste by ID
func PasteKey(id string) string {
	return KeyPrefixPaste + id
}
