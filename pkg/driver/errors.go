package driver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrorKind classifies store failures so callers can decide between aborting
// a batch (connection, auth) and surfacing a bad query.
type ErrorKind string

const (
	ErrorKindConnection ErrorKind = "connection"
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindQuery      ErrorKind = "query"
)

// ErrUnsupportedQuery marks a raw query sent to a store that has no query
// language, such as the in-memory store.
var ErrUnsupportedQuery = errors.New("store does not support raw queries")

var errClosed = errors.New("store is closed")

// Error wraps a store failure with its classification and the operation that
// produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is a classified connection failure.
func IsConnectionError(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrorKindConnection
}

// IsAuthError reports whether err is a classified authentication failure.
func IsAuthError(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrorKindAuth
}

// classify wraps err with the kind inferred from the neo4j driver's error
// taxonomy. Security codes become auth errors, connectivity failures become
// connection errors, everything else is a query error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) && strings.HasPrefix(ne.Code, "Neo.ClientError.Security.") {
		return &Error{Kind: ErrorKindAuth, Op: op, Err: err}
	}
	if neo4j.IsConnectivityError(err) {
		return &Error{Kind: ErrorKindConnection, Op: op, Err: err}
	}
	return &Error{Kind: ErrorKindQuery, Op: op, Err: err}
}
