// Package manifest loads declarative backend descriptions from a directory.
//
// # Overview
//
// Each backend is described by one YAML manifest, either at
// <dir>/<id>/manifest.yaml or as a flat <dir>/<id>.yaml file. The backend id
// comes from the directory or file name and is immutable once loaded.
//
// A manifest declares:
//
//   - identity: human name, description, enabled flag
//   - connection: an exec block (container, workdir, command) or an http
//     block (base_url, paths) — exactly one, which determines the transport
//   - tools: the backend's declared tool catalog
//   - adapter: an optional explicit adapter implementation reference
//
// # Adapter resolution
//
// The loader resolves which adapter implementation serves a backend at load
// time, against a registry of factory registrations:
//
//  1. the manifest's explicit adapter field, if set
//  2. the conventional "<id>_client" name otherwise
//
// If neither name is registered, the backend fails to load with
// ErrAdapterNotFound. This replaces runtime class-loading by string with an
// explicit startup-time registry: a new backend kind means a new
// registration, never a new import path resolved reflectively.
//
// # Failure isolation
//
// A malformed manifest (missing fields, duplicate id, unresolvable adapter)
// excludes only that backend. The error is kept in Set.Failed for
// introspection; remaining backends load normally.
//
// # Credentials
//
// ${VAR} patterns in manifests are expanded from the environment before
// parsing, so API tokens reach the connection block without being written
// to disk.
//
// The tool catalog is declared, not introspected: it is fixed at load time
// and never refreshed from the running backend.
package manifest
