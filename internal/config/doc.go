// Package config loads the settings of the supply chain batch jobs.
//
// # Configuration Sources
//
// Configuration is assembled in the following order, later sources winning:
//
//	1. Default values (Default)
//	2. A YAML file (--config, or supplychain.yaml / config.yaml / configs/config.yaml)
//	3. Environment variables, optionally seeded from a .env file
//
// # Environment Variables
//
// Environment variables follow the pattern SUPPLYCHAIN_<SECTION>_<FIELD>:
//
//	SUPPLYCHAIN_LOGGING_LEVEL=debug
//	SUPPLYCHAIN_PATHS_OUTPUT_DIR=out
//	SUPPLYCHAIN_PIPELINE_DECLARED_END=2024-01-31
//	SUPPLYCHAIN_QUALITY_WEIGHTS_VALIDITY=0.25
//	SUPPLYCHAIN_ANALYSIS_THRESHOLDS=lead_time_days:p75,route_risk_level:7
//
// # Paths
//
// Output artifacts default to the conventional file names of the pipeline
// (cleaned_supply_chain_data.csv, daily_supply_chain_metrics.csv, ...) and
// are resolved against the output directory by Config.ResolvePaths.
package config
