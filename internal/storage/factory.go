package storage

import (
	"fmt"
	"os"
)

// StoreKindEnv overrides the default backend when set.
const StoreKindEnv = "CACHEGA_STORE"

func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// DefaultStoreKind is "memory" unless CACHEGA_STORE names another backend.
func DefaultStoreKind() string {
	if kind := os.Getenv(StoreKindEnv); kind != "" {
		return kind
	}
	return "memory"
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
