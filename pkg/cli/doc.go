// Package cli holds shared plumbing for the kokoctl command line tool:
// request-file loading, result output in YAML/JSON, binary file output and
// styled terminal messages.
package cli
