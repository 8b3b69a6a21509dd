/*
Package metrics is the process-wide Prometheus registry: a fixed
counter/gauge/histogram set published to a scrape endpoint, using promauto
so every metric self-registers against the default Prometheus registerer.

# Core type

  - Registry: holds every metric this worker publishes, one field per metric.

Strictly observable: nothing in the engine branches on a value read back
from this package.
*/
package metrics
