// Package config manages the dao-cfg user configuration file.
//
// The file lives at $XDG_CONFIG_HOME/dao-cfg/config.yaml (or the platform
// equivalent) and holds saved webservers plus editor preferences:
//
//	version: 1
//	default_backend: home
//	backends:
//	  home:
//	    url: http://homeassistant.local:5000
//	    source: mdns
//	preferences:
//	  debounce_ms: 300
//	  min_chars: 2
//	  max_results: 50
//	  cache_ttl_seconds: 300
//	  toast_seconds: 4
//	  pattern_param: pattern
//
// Missing preferences take their defaults. The file is validated on load
// and before every save, and written atomically.
package config
