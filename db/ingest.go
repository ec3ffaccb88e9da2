package db

import (
	"context"
	"database/sql"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/drupchen/tacl/catalogue"
	"github.com/drupchen/tacl/corpus"
	"github.com/drupchen/tacl/errs"
	"github.com/drupchen/tacl/ngram"
)

// witnessResult is what a generation worker hands back to the single
// writer: everything needed to persist one witness, or an error.
type witnessResult struct {
	witness    *corpus.Witness
	checksum   string
	tokenCount int
	buckets    []ngram.SizeBucket
	err        error
}

// AddNgrams ingests every witness of corp (or, if cat is non-nil, only
// witnesses whose work is listed in cat) for n-gram sizes [minSize,
// maxSize]. Generation is parallel across witnesses (§5); writes are
// serialized, one transaction per witness, on the calling goroutine.
func (s *Store) AddNgrams(ctx context.Context, corp *corpus.Corpus, minSize, maxSize int, cat *catalogue.Catalogue) error {
	if minSize < 1 || maxSize < minSize {
		return errs.BadSizeRange("minimum and maximum n-gram size")
	}

	witnesses, err := selectWitnesses(corp, cat)
	if err != nil {
		return err
	}
	if len(witnesses) == 0 {
		return nil
	}

	if err := dropNgramIndices(s.db, s.dialect); err != nil {
		return err
	}

	jobs := make(chan *corpus.Witness)
	results := make(chan witnessResult)

	numWorkers := runtime.NumCPU()
	if numWorkers > len(witnesses) {
		numWorkers = len(witnesses)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobs {
				results <- generateWitness(corp, w, minSize, maxSize)
			}
		}()
	}
	go func() {
		for _, w := range witnesses {
			select {
			case jobs <- w:
			case <-ctx.Done():
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for r := range results {
		if r.err != nil {
			log.Error().Err(r.err).Str("work", r.witness.Work).Str("siglum", r.witness.Siglum).Msg("failed to generate n-grams")
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		if err := s.writeWitness(ctx, r); err != nil {
			log.Error().Err(err).Str("work", r.witness.Work).Str("siglum", r.witness.Siglum).Msg("failed to write n-grams")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	if err := recreateNgramIndices(s.db); err != nil {
		return err
	}
	for _, stmt := range s.dialect.AnalyseSQL() {
		if _, err := s.db.Exec(stmt); err != nil {
			log.Warn().Err(err).Str("stmt", stmt).Msg("analyse statement failed, continuing")
		}
	}
	return nil
}

func selectWitnesses(corp *corpus.Corpus, cat *catalogue.Catalogue) ([]*corpus.Witness, error) {
	if cat == nil {
		return corp.GetTexts()
	}
	wanted := make(map[string]bool)
	for _, w := range cat.Works() {
		wanted[w] = true
	}
	all, err := corp.GetTexts()
	if err != nil {
		return nil, err
	}
	var out []*corpus.Witness
	for _, w := range all {
		if wanted[w.Work] {
			out = append(out, w)
		}
	}
	return out, nil
}

func generateWitness(corp *corpus.Corpus, w *corpus.Witness, minSize, maxSize int) witnessResult {
	content, err := w.Content()
	if err != nil {
		return witnessResult{witness: w, err: err}
	}
	checksum, err := w.Checksum()
	if err != nil {
		return witnessResult{witness: w, err: err}
	}
	tokens := corp.Tokenizer.Tokenize(content)
	buckets := ngram.Generate(corp.Tokenizer, tokens, minSize, maxSize)
	return witnessResult{witness: w, checksum: checksum, tokenCount: len(tokens), buckets: buckets}
}

// writeWitness implements §4.5.1: resolve-or-create the Text row
// (replacing n-grams wholesale on checksum drift), then per size check
// the TextHasNGram idempotency marker before inserting. The n-grams of
// every size were already generated by the worker; a size that is
// already marked has its generated n-grams discarded.
func (s *Store) writeWitness(ctx context.Context, r witnessResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.IO("Text", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var textID int64
	var existingChecksum string
	err = tx.QueryRowContext(ctx, "SELECT id, checksum FROM Text WHERE work = ? AND siglum = ?",
		r.witness.Work, r.witness.Siglum).Scan(&textID, &existingChecksum)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			"INSERT INTO Text (work, siglum, checksum, token_count, label) VALUES (?, ?, ?, ?, '')",
			r.witness.Work, r.witness.Siglum, r.checksum, r.tokenCount)
		if err != nil {
			return errs.IO("Text", err)
		}
		textID, err = res.LastInsertId()
		if err != nil {
			return errs.IO("Text", err)
		}
	case err != nil:
		return errs.IO("Text", err)
	case existingChecksum != r.checksum:
		if _, err := tx.ExecContext(ctx, "DELETE FROM TextNGram WHERE text = ?", textID); err != nil {
			return errs.IO("TextNGram", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM TextHasNGram WHERE text = ?", textID); err != nil {
			return errs.IO("TextHasNGram", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE Text SET checksum = ?, token_count = ? WHERE id = ?",
			r.checksum, r.tokenCount, textID); err != nil {
			return errs.IO("Text", err)
		}
	}

	for _, bucket := range r.buckets {
		var marker int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM TextHasNGram WHERE text = ? AND size = ?", textID, bucket.Size).Scan(&marker)
		if err == nil {
			continue // already ingested at this size; I2
		}
		if err != sql.ErrNoRows {
			return errs.IO("TextHasNGram", err)
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO TextNGram (text, ngram, size, count) VALUES (?, ?, ?, ?)")
		if err != nil {
			return errs.IO("TextNGram", err)
		}
		for ng, count := range bucket.Counts {
			if _, err := stmt.ExecContext(ctx, textID, ng, bucket.Size, count); err != nil {
				stmt.Close()
				return errs.IO("TextNGram", err)
			}
		}
		stmt.Close()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO TextHasNGram (text, size, ngram_count) VALUES (?, ?, ?)",
			textID, bucket.Size, len(bucket.Counts)); err != nil {
			return errs.IO("TextHasNGram", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.IO("Text", err)
	}
	committed = true
	return nil
}

// Validate confirms, for every active catalogue work, that all its
// sigla have Text rows whose checksum matches the corpus file's
// current MD5. It returns false (with the offending path) on the
// first mismatch or missing record.
func (s *Store) Validate(ctx context.Context, corp *corpus.Corpus, cat *catalogue.Catalogue) (ok bool, mismatchPath string, err error) {
	for _, e := range cat.Active() {
		sigla, err := corp.SiglaForWork(e.Work)
		if err != nil {
			return false, "", err
		}
		for _, siglum := range sigla {
			w, err := corp.GetWitness(e.Work, siglum)
			if err != nil {
				return false, "", err
			}
			checksum, err := w.Checksum()
			if err != nil {
				return false, "", err
			}
			var stored string
			dbErr := s.db.QueryRowContext(ctx, "SELECT checksum FROM Text WHERE work = ? AND siglum = ?",
				e.Work, siglum).Scan(&stored)
			if dbErr == sql.ErrNoRows {
				return false, w.Path(), nil
			}
			if dbErr != nil {
				return false, "", errs.IO("Text", dbErr)
			}
			if stored != checksum {
				return false, w.Path(), nil
			}
		}
	}
	return true, "", nil
}
