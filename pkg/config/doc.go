// Package config loads application configuration from an optional YAML
// file and KENSAKU_* environment variables.
//
// # Precedence
//
// Built-in defaults are applied first, then the YAML file named by
// KENSAKU_CONFIG_FILE (if set), then environment variables. Keys missing
// from the file keep their defaults.
//
// # Configuration Structure
//
// Server settings:
//
//	KENSAKU_HOST="0.0.0.0"
//	KENSAKU_PORT="8080"
//	KENSAKU_HEALTH_PORT="9090"
//	KENSAKU_WARM_TOKENIZER="true"
//
// Storage settings:
//
//	KENSAKU_STORAGE_TYPE="postgres"  # memory, postgres
//	KENSAKU_POSTGRES_URL="postgres://localhost/kensaku"
//	KENSAKU_POSTGRES_REPLICA_URLS="postgres://r1/kensaku,postgres://r2/kensaku"
//	KENSAKU_REDIS_ENABLED="true"
//	KENSAKU_REDIS_URL="redis://localhost:6379"
//
// Tokenizer settings:
//
//	KENSAKU_TOKENIZER="dictionary"  # dictionary, heuristic
//	KENSAKU_DICTIONARY_LOCATION="s3://dictionaries/ipa.dict"
//	KENSAKU_TOKENIZER_INIT_TIMEOUT="2m"
//
// Propagation settings:
//
//	KENSAKU_FAILURE_POLICY="best-effort"  # best-effort, fail-fast
//	KENSAKU_PROPAGATION_WORKERS="4"
//	KENSAKU_REBUILD_TIMEOUT="30s"
//	KENSAKU_REPAIR_SCHEDULE="@every 5m"
//
// Search settings:
//
//	KENSAKU_SEARCH_DEFAULT_LIMIT="20"
//	KENSAKU_SEARCH_SECONDARY_KEY="recency"  # recency, id
//	KENSAKU_SEARCH_NORMALIZE_RANK="false"
//
// Observability settings:
//
//	KENSAKU_LOG_LEVEL="info"
//	KENSAKU_OTEL_ENABLED="true"
//	KENSAKU_OTEL_ENDPOINT="localhost:4317"
//
// # Validation
//
// Validate rejects an unknown tokenizer variant or failure policy. The
// tokenizer variant is never guessed: whichever one is configured is the
// one that runs.
package config
