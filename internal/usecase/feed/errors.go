// Package feed renders sources and their articles as Atom, RSS 2.0 or JSON Feed documents.
package feed

import "errors"

// ErrSourceNotFound indicates that the requested source id does not exist.
var ErrSourceNotFound = errors.New("feed source not found")
