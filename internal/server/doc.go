/*
Package server manages the lifecycle of the worker's external HTTP
surface — non-blocking start, graceful shutdown bounded by a timeout, and
asynchronous error propagation.

# Core type

  - Manager: wraps net/http.Server with Start/Shutdown/WaitForShutdown and
    an Errors() channel for out-of-band server failures.
  - Config: listen address, read/write/idle timeouts, graceful shutdown
    timeout.
*/
package server
