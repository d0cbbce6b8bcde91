// Package envconfig manages per-(service, environment, key)
// configuration rows consumed by the config generator.
package envconfig
