// Package migrations embeds the per-dialect schema files and the bundled SQL
// function files.
//
// Layout:
//
//	<dialect>/NNNNNN_name.up.sql  versioned migrations, applied in order
//	<dialect>/shadow_table.sql    template for one shadow table
//	<dialect>/meta_table.sql      template for one primary meta table
//	sql/*.sql                     stored functions installed on MySQL
package migrations

import "embed"

//go:embed mysql postgres sqlite duckdb sql
var FS embed.FS
