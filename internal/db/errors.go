package db

import (
	"errors"
	"fmt"
)

// ErrIndexExists signals FT.CREATE on an index that is already present.
var ErrIndexExists = errors.New("index already exists")

// Op identifies the store operation an Error originated from.
type Op string

// Store operations.
const (
	OpHSet        Op = "hset"
	OpHGetAll     Op = "hgetall"
	OpDel         Op = "del"
	OpCreateIndex Op = "ft.create"
	OpIndexInfo   Op = "ft.info"
	OpSearch      Op = "ft.search"
	OpPing        Op = "ping"
)

// Error wraps a backend error with the operation that produced it.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
