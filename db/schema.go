package db

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// createSchema creates the three logical tables of §4.5 and their
// indices, in the style of the teacher's createSchema (db/sqlite's
// operations.go): one statement per table/index, logged as it goes.
func createSchema(database *sql.DB, dialect Dialect) error {
	log.Info().Str("backend", dialect.Name()).Msg("creating DataStore schema")

	keyText := dialect.KeyableTextType()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE Text (
			id %s,
			work %s NOT NULL,
			siglum %s NOT NULL,
			checksum %s NOT NULL,
			token_count INTEGER NOT NULL,
			label %s NOT NULL DEFAULT '',
			UNIQUE(work, siglum)
		)`, dialect.AutoIncrementPK(), keyText, keyText, keyText, keyText),
		fmt.Sprintf(`CREATE TABLE TextNGram (
			text INTEGER NOT NULL,
			ngram %s NOT NULL,
			size INTEGER NOT NULL,
			count INTEGER NOT NULL,
			UNIQUE(text, ngram)
		)`, keyText),
		`CREATE TABLE TextHasNGram (
			text INTEGER NOT NULL,
			size INTEGER NOT NULL,
			ngram_count INTEGER NOT NULL,
			UNIQUE(text, size)
		)`,
		`CREATE INDEX textngram_ngram_idx ON TextNGram(ngram)`,
		`CREATE INDEX textngram_text_size_idx ON TextNGram(text, size)`,
	}
	for _, stmt := range stmts {
		if _, err := database.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	log.Info().Msg("DataStore schema created")
	return nil
}

// dropNgramIndices and recreateNgramIndices bracket a bulk ingest
// (§4.5.1's "indices... dropped before ingest and recreated at the
// end"). No reader may run in that window (§5).
func dropNgramIndices(database *sql.DB, dialect Dialect) error {
	for _, idx := range []string{"textngram_ngram_idx", "textngram_text_size_idx"} {
		database.Exec(dialect.DropIndexSQL(idx, "TextNGram"))
	}
	return nil
}

func recreateNgramIndices(database *sql.DB) error {
	for _, stmt := range []string{
		`CREATE INDEX textngram_ngram_idx ON TextNGram(ngram)`,
		`CREATE INDEX textngram_text_size_idx ON TextNGram(text, size)`,
	} {
		if _, err := database.Exec(stmt); err != nil {
			return fmt.Errorf("failed to recreate index: %w", err)
		}
	}
	return nil
}
