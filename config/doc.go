// Package config loads service configuration with viper.
//
// LoadConfig looks for config.yml under cmd/<service>/, config/ and the
// working directory, then a .env file in the same places. Environment
// variables override file values: MESH_DISCOVERY_SWEEP_INTERVAL maps onto
// discovery.sweep_interval when loaded WithEnvPrefix("MESH").
//
//	var cfg AppConfig
//	if err := config.Load("meshd", &cfg); err != nil { ... }
//
// Load additionally runs ApplyDefaults and Validate on the result.
package config
