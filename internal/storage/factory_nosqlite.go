//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("%w: sqlite needs a build with -tags sqlite", ErrUnsupportedBackend)
}
