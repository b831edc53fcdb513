// Package config loads pipeline configuration from YAML with environment
// variable overrides.
//
// Resolution order, later wins:
//  1. Built-in defaults
//  2. The YAML file passed to Load (or .reqflow.yaml in the working dir)
//  3. REQFLOW_* environment variables
package config
