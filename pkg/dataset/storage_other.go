//go:build !unix

package dataset

import "errors"

func mapStorage(dir string, n int) ([]byte, func() error, error) {
	return nil, nil, errors.New("mapped storage is not supported on this platform")
}
