package config

// settingsSchema declares every setting with its default.
const settingsSchema = `
#Settings: {
	// Path of the hierarchy configuration
	hiera_config: string | *"hiera.yaml"

	// Overrides the hierarchy's default data directory
	data_dir: string | *""

	// Facts file (YAML or JSON); merged over locally detected facts
	facts: string | *""

	// SQLite database for compilation history; empty disables history
	state_db: string | *""

	// Environment name passed to policies
	environment: string | *"production"

	// Chained inclusion ceiling; 0 is unbounded
	max_depth: int & >=0 | *0

	// Fail on including classes nothing defines
	strict_classes: bool | *false

	// Manifest evaluation timeout
	timeout: =~"^[0-9]+(ns|us|ms|s|m|h)$" | *"30s"

	// Extra .rego or .json policy files and directories
	policy_paths: [...string] | *[]

	logging: {
		level:  "trace" | "debug" | *"info" | "warn" | "error"
		format: *"console" | "json"
	}

	metrics: {
		enabled: bool | *false
		address: string | *":9090"
	}

	tracing: {
		exporter:      "otlp" | "stdout" | *"none"
		endpoint:      string | *"localhost:4317"
		sampling_rate: number & >=0 & <=1 | *1.0
	}
}
`
