// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package sqlitedriver registers the pure-Go modernc.org/sqlite driver under
// the database/sql name "sqlite3", so adapters can sql.Open("sqlite3", ...)
// without a CGO toolchain.
package sqlitedriver

import (
	"database/sql"

	"modernc.org/sqlite"
)

func init() {
	sql.Register("sqlite3", &sqlite.Driver{})
}
