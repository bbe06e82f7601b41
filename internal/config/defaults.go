package config

import "time"

const (
	// DefaultProjectPath is the directory results are stored under and .env is read from
	DefaultProjectPath = "."
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "test-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = "storage"
	// DefaultTimeout bounds every test body and hook
	DefaultTimeout = 5 * time.Second
	// DefaultStore is the default results backend
	DefaultStore = StoreJSON
	// DefaultDatabaseName is the MySQL schema used by the mysql store
	DefaultDatabaseName = "gest_results"
)

// Result stores
const (
	StoreJSON  = "json"
	StoreMySQL = "mysql"
)
