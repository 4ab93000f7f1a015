package migrations

import "embed"

// Schema holds the ledger store scripts: postgres/ for accounts and chain
// state, clickhouse/ for the transaction log.
//
//go:embed postgres/*.sql clickhouse/*.sql
var Schema embed.FS

const (
	postgresDir   = "postgres"
	clickhouseDir = "clickhouse"
)
