package migrations

import "embed"

// PostgresFS holds the durable reconciliation schema: balance snapshots,
// discrepancy records, trade lifecycles and idempotency keys.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the run history schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
