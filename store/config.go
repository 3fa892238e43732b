package store

// Config holds configuration for the Store.
type Config struct {
	// TableName is the name of the DynamoDB table.
	// Default: "students"
	TableName string

	// KeyAttribute is the name of the string partition key attribute.
	// Default: "id"
	KeyAttribute string

	// ScanSegments is the number of parallel segments used by Scan.
	// Higher values shorten full-table scans on large tables at the cost
	// of consuming read capacity faster.
	// Default: 1 (sequential scan)
	// Max: 64
	ScanSegments int
}

// DefaultConfig returns sensible defaults for small tables.
func DefaultConfig() Config {
	return Config{
		TableName:    "students",
		KeyAttribute: "id",
		ScanSegments: 1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "students"
	}
	if c.KeyAttribute == "" {
		c.KeyAttribute = "id"
	}
	if c.ScanSegments < 1 {
		c.ScanSegments = 1
	}
	if c.ScanSegments > 64 {
		c.ScanSegments = 64
	}
}
