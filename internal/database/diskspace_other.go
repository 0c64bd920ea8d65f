//go:build !unix

package database

import "errors"

func freeBytes(string) (uint64, error) {
	return 0, errors.New("free space check unsupported on this platform")
}
