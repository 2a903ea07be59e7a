package storage

import "fmt"

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// DefaultStoreKind is the backend used when none is configured.
func DefaultStoreKind() string { return KindMemory }

func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
