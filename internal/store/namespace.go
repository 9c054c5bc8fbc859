package store

import "context"

type namespaced struct {
	inner  Store
	prefix string
}

// Namespaced scopes every key under ns, so several profiles can share one
// backend without seeing each other's entries.
func Namespaced(inner Store, ns string) Store {
	return &namespaced{inner: inner, prefix: ns + "/"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.prefix+key)
}
