// Package cache implements the dataset download cache. A cache entry is pure
// filesystem state: <dir>/<basename> holds a complete, verified download and
// <dir>/<basename>.partial holds an in-progress one. Downloads stream into
// the partial file and are published with a single rename, so readers of the
// final path never observe half-written content. An existing final file is
// trusted on presence and returned without touching the network.
package cache
