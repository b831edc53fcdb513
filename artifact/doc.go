// Package artifact persists run outputs to disk.
//
// Each run owns a directory under <base>/runs/<run-id>/ holding the JSON
// and markdown artifacts produced by the pipeline stages. A lifecycle
// manager applies retention policy: old runs are compressed into monthly
// tar.gz archives and eventually deleted.
package artifact
