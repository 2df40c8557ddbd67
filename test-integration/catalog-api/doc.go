// Package integration runs the catalog API end to end: a real server built from a
// configuration file, exercised over HTTP.
//
// Run with:
//
//	go test ./test-integration/... -ginkgo.label-filter=file
package integration
