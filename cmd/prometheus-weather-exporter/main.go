// Prometheus Weather Exporter serves current weather readings from several
// upstream providers as Prometheus metrics.
//
// Usage:
//
//	# Serve with ./config.yaml
//	prometheus-weather-exporter
//
//	# Serve with a custom configuration file and info logging
//	prometheus-weather-exporter --config /etc/weather/config.yaml -vv
//
//	# Create a bcrypt hash for the auth section
//	echo -n secret | prometheus-weather-exporter hash-password
package main

func main() {
	Execute()
}
