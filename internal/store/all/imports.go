// Package all registers every store backend with the factory. Import it for
// side effects from binaries that should support the full driver matrix:
//
//	import _ "migrator/internal/store/all"
package all

import (
	_ "migrator/internal/store/mssql"
	_ "migrator/internal/store/mysql"
	_ "migrator/internal/store/postgres"
	_ "migrator/internal/store/sqlite"
)
