// Package all registers every storage backend and the SQL Server driver.
// Import it for side effects from binaries that load into a database.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "datacleaner/internal/storage/mssql"
	_ "datacleaner/internal/storage/postgres"
	_ "datacleaner/internal/storage/sqlite"
)
