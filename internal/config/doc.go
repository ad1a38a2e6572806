// Package config provides configuration management for taskdash.
//
// Configuration is assembled from three layers, lowest priority first:
//
//  1. Built-in defaults
//  2. A TOML file (taskdash.toml, or the path given with -config)
//  3. TASKDASH_* environment variables
//
// Example configuration:
//
//	[render]
//	border = 5
//	fps = 30
//	resize_check_frames = 30
//	backend = "ansi"
//
//	[content]
//	path = "tasks.yaml"
//	watch = true
//	reload_per_second = 4.0
//
//	[logging]
//	level = "info"
//	file = "/tmp/taskdash.log"
//
// Command line flags are applied on top by the caller.
package config
