// Package cli implements kensaku-cli, the operator command line.
//
// Commands read the same configuration as the server (defaults, the YAML
// file named by --config or KENSAKU_CONFIG_FILE, then KENSAKU_*
// environment variables):
//
//	kensaku-cli migrate                 create the PostgreSQL schema
//	kensaku-cli reindex                 rebuild every document representation
//	kensaku-cli repair                  retry entries in the stale tracker
//	kensaku-cli tokenize 東京タワーへ行く  show tokens and the representation
//	kensaku-cli search --json 東京       run a query
//
// Run reindex after changing the tokenizer variant or dictionary: stored
// representations keep the vocabulary they were built with.
package cli
