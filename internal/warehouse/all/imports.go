// Package all registers every warehouse backend with the factory. Importing
// it for side effects lets the CLI select a backend from configuration alone.
package all

import (
	_ "github.com/Svencol/data-modeling-pipeline/internal/warehouse/mysql"
	_ "github.com/Svencol/data-modeling-pipeline/internal/warehouse/postgres"
	_ "github.com/Svencol/data-modeling-pipeline/internal/warehouse/sqlite"
)
