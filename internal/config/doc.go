// Package config provides local-first configuration for gridscope.
//
// All configuration lives in the project's .gridscope/ directory:
//
//	.gridscope/
//	├── config.json        # Main configuration (or config.yaml)
//	├── .gitignore         # Keeps logs and exports out of git
//	└── gridscope.log      # Structured log output
//
// config.json holds flat key-value settings:
//
//	{
//	  "api_url": "http://localhost:8000",
//	  "api_prefix": "/api/v1",
//	  "theme": "grid",
//	  "filter_debounce_ms": 500,
//	  "target_debounce_ms": 200,
//	  "poll_initial_ms": 500,
//	  "poll_factor": 1.5,
//	  "poll_max_ms": 5000,
//	  "poll_max_attempts": 60
//	}
//
// When config.yaml exists and config.json does not, the YAML file is read
// instead and saved back in the same format.
//
// Values can reference environment variables using $VAR or ${VAR}:
//
//	{
//	  "api_url": "${GRIDSCOPE_API}",
//	  "api_token": "$GRIDSCOPE_TOKEN"
//	}
//
// Example usage:
//
//	manager := config.NewManager("/path/to/project")
//	if err := manager.Load(); err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := manager.Get()
//	fmt.Println("Backend:", cfg.APIURL)
//
//	// Update a setting
//	manager.Set("theme", "mono")
package config
