// Package prometheus renders goVault engine metrics in the Prometheus text
// exposition format and serves them over an http.Handler. It writes the
// format directly and needs no client library.
package prometheus
