// Package all registers every warehouse storage backend.
package all

import (
	_ "warehouse/internal/storage/mssql"
	_ "warehouse/internal/storage/postgres"
	_ "warehouse/internal/storage/sqlite"
)
