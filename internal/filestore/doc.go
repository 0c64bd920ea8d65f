// Package filestore stores download packages and their links through the
// database backend, registered as the "filestore" extension.
//
// Packages group links and belong to either the collector (queue 0) or the
// active queue (queue 1). Names are trimmed and NFC-normalised before they
// are written so lookups do not depend on how a caller composed them.
package filestore
