// Package tlsutil provides a hardened TLS configuration (1.2+, AEAD-only
// cipher suites) shared by every outbound HTTP client the worker opens.
package tlsutil
