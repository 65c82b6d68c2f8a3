// Command server runs the CacheOnHover prefetch host.
//
// Usage:
//
//	cacheonhover serve [--config path]
//	cacheonhover version
package main
