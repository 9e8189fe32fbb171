// Package all registers every storage backend. Import for side effects:
//
//	import _ "salesdw/internal/storage/all"
package all

import (
	_ "salesdw/internal/storage/mssql"
	_ "salesdw/internal/storage/postgres"
	_ "salesdw/internal/storage/sqlite"
)
