// Package all registers every built-in mirror backend with the storage
// package. Import it for side effects:
//
//	import _ "ouvidoria/internal/storage/all"
package all

import (
	_ "ouvidoria/internal/storage/postgres"
	_ "ouvidoria/internal/storage/sqlite"
)
