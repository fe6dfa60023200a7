// Package server hosts the optional HTTP front of fedcache and the shared
// download client. NewApp builds a Fiber application that resolves dataset
// names from config into cache entries, downloading each dataset on first
// request and streaming the cached file afterwards. Concurrent requests for
// one dataset share a single download. Diagnostics live under /-/.
package server
