//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(path string) (Store, error) {
	return nil, fmt.Errorf("cannot open run store %q: this cachega binary was built without sqlite support (go build -tags sqlite)", path)
}
