// Package config loads process settings and agent catalogs.
//
// Settings come from the environment (REACT_* variables), optionally seeded
// from a .env file and a config file. A Catalog describes agents, their
// tools and sub-agents in YAML and builds the descriptors a run starts from.
package config
