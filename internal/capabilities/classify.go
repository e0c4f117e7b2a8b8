package capabilities

import (
	"strings"

	"github.com/canonica-labs/geometa/internal/adapters"
)

// signatureSet lists error fragments that prove a probed function exists:
// the engine resolved the name and then complained about the call itself.
type signatureSet struct {
	version int
	present []string
}

// probeSignatures is versioned per engine; bumping a version changes the
// catalog fingerprint and forces a retest on the next Init.
var probeSignatures = map[string]signatureSet{
	adapters.MySQL: {version: 1, present: []string{
		"Incorrect parameter count",
		"You have an error in your SQL syntax",
	}},
	adapters.SQLite: {version: 1, present: []string{
		"wrong number of arguments to function",
	}},
	adapters.DuckDB: {version: 1, present: []string{
		"No function matches the given name and argument types",
	}},
	// PostgreSQL reports a wrong argument list exactly like a missing
	// function, so availability comes from pg_proc alone.
	adapters.Postgres: {version: 1},
}

// Classify interprets the outcome of SELECT fn() on the given engine. A call
// that succeeds proves the function exists.
func Classify(dialect string, err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	for _, sig := range probeSignatures[dialect].present {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// SignatureVersion returns the signature table version for an engine.
func SignatureVersion(dialect string) int {
	return probeSignatures[dialect].version
}
