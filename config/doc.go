// Package config loads and validates repostore configuration.
//
// YAML files, environment variables and CLI flags are merged by viper and
// the result is checked with go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s), merged left-to-right (default: ./repostore.yaml)
//  3. Environment variables (REPOSTORE_ prefix)
//  4. CLI flags
//
// # Environment Variables
//
// Every key maps to a REPOSTORE_ variable:
//   - storage.s3.region → REPOSTORE_STORAGE_S3_REGION
//   - journal.dsn → REPOSTORE_JOURNAL_DSN
//   - lifecycle.concurrency → REPOSTORE_LIFECYCLE_CONCURRENCY
//
// Two provider variables are honoured as fallbacks:
//   - STORAGE_BLOB_URL for storage.abs.account_url
//   - GOOGLE_CLOUD_PROJECT for storage.gcs.project_id
//
// AWS and Google credentials are otherwise left to each SDK's default chain.
//
// # Configuration Structure
//
//   - Env: dev or production, selects the log format
//   - Storage: per-driver settings for s3, gcs and abs
//   - Lifecycle: container name prefix, suffix length, teardown concurrency and timeout
//   - Journal: type (sqlite, postgres, none), DSN and table
//   - Server: gateway listen address, bearer token, upload limit and CORS
//   - Log: logging level
package config
