package intercept

import "fmt"

// OrderingKey is the category of an interceptor. Lower keys run further
// from the transport.
type OrderingKey int

const (
	KeyDefault OrderingKey = iota
	KeyTracing
	KeyAuthentication
	KeyHeaders
	KeyLogging
	KeyMetrics
	KeyResiliency
	KeyHooks
)

var keyNames = [...]string{
	KeyDefault:        "default",
	KeyTracing:        "tracing",
	KeyAuthentication: "authentication",
	KeyHeaders:        "headers",
	KeyLogging:        "logging",
	KeyMetrics:        "metrics",
	KeyResiliency:     "resiliency",
	KeyHooks:          "hooks",
}

func (k OrderingKey) String() string {
	if k >= 0 && int(k) < len(keyNames) {
		return keyNames[k]
	}
	return fmt.Sprintf("OrderingKey(%d)", int(k))
}

// Valid reports whether k is one of the known categories.
func (k OrderingKey) Valid() bool {
	return k >= KeyDefault && k <= KeyHooks
}

// Keyed is implemented by interceptors that know their category.
type Keyed interface {
	OrderingKey() OrderingKey
}

// KeyOf returns the category of i. Interceptors that do not implement
// Keyed, or report an unknown key, belong to KeyDefault.
func KeyOf(i Interceptor) OrderingKey {
	k, ok := i.(Keyed)
	if !ok {
		return KeyDefault
	}
	if key := k.OrderingKey(); key.Valid() {
		return key
	}
	return KeyDefault
}
