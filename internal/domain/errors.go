// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates invalid input supplied by the caller.
var ErrValidation = errors.New("validation failed")

// ErrConfigLoad indicates a project configuration is missing or unreadable.
// A workspace that hits it stays not-ready for the life of the process.
var ErrConfigLoad = errors.New("config load failed")

// ErrRootNotFound indicates no ancestor directory holds a sketch folder with a config file.
var ErrRootNotFound = errors.New("sketch project root not found")

// ErrRemoteIdentityNotFound indicates a named assistant or vector store does not exist remotely.
var ErrRemoteIdentityNotFound = errors.New("remote identity not found")

// ErrNotReady indicates the workspace or its assistant has not resolved a remote identity.
var ErrNotReady = errors.New("not ready")

// ErrInFlight indicates a transpile for the same file is already running.
var ErrInFlight = errors.New("transpile already in flight")

// ErrNotSketch indicates the file content carries no sketch tag.
var ErrNotSketch = errors.New("not a sketch file")
