package rediskey

import "fmt"

// Key namespaces (global convention across services)
const (
	SettlePrefix   = "distribution:settle"
	SequencePrefix = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSettleDayKey returns "distribution:settle:{day}"
func BuildSettleDayKey(day string) string {
	return NamespaceKey(SettlePrefix, day)
}

// BuildSequenceKey returns "seq:{name}:{day}"
func BuildSequenceKey(name, day string) string {
	return NamespaceKey(SequencePrefix, fmt.Sprintf("%s:%s", name, day))
}
