// Package all registers every source backend with the source factory.
// Blank-import it from main packages.
package all

import (
	_ "catalogo/internal/source/firebird"
	_ "catalogo/internal/source/mssql"
	_ "catalogo/internal/source/postgres"
)
