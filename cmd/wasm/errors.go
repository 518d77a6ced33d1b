//go:build js && wasm

package main

import "errors"

var errMissingArgs = errors.New("missing arguments")
