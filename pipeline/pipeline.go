// Package pipeline implements the Pipeline Worker (C9): it runs exactly
// one job to completion by selecting a scraper strategy, driving the
// crawl, splitting each scraped page into chunks, and streaming them into
// the Document Store, per §4.9.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/docsvault/jobmanager"
	"github.com/hazyhaar/docsvault/scrape"
	"github.com/hazyhaar/docsvault/splitter"
	"github.com/hazyhaar/docsvault/store"
)

// Worker builds jobmanager.Runner values bound to a fixed store, strategy
// registry, and splitter. Its RunJob method is the Runner a jobmanager
// Manager is configured with.
type Worker struct {
	Store    *store.Store
	Registry *scrape.Registry
	Splitter splitter.Splitter
	Logger   *slog.Logger
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// RunJob drives job to completion: select a strategy via the registry,
// scrape, and on every successfully processed page split it into chunks
// and add them to the store. Matches §4.9 steps 1-3. Cancellation is
// threaded through job.Context(), which the registry's fetchers observe
// directly — step 4 requires no extra handling here.
func (w *Worker) RunJob(ctx context.Context, job *jobmanager.Job) error {
	opts := job.Options()
	log := w.logger()

	pagesScraped := 0
	onProgress := func(doc scrape.Document) error {
		pagesScraped++
		job.SetProgress(jobmanager.Progress{
			PagesScraped: pagesScraped,
			MaxPages:     opts.MaxPages,
			CurrentURL:   doc.Metadata.URL,
			MaxDepth:     opts.Depth(),
		})

		chunks := w.Splitter.Split(doc.Content, splitter.Metadata{
			Title: doc.Metadata.Title,
			URL:   doc.Metadata.URL,
		}, splitter.Options{})

		docs := make([]store.Document, len(chunks))
		for i, c := range chunks {
			docs[i] = store.Document{
				Content: c.Content,
				Metadata: store.Metadata{
					Title: doc.Metadata.Title,
					URL:   doc.Metadata.URL,
					Path:  c.Section.Path,
					Level: c.Section.Level,
					Extra: extraFields(doc.Metadata.Extra),
				},
			}
		}

		if err := w.Store.AddDocuments(ctx, job.Library(), job.Version(), docs); err != nil {
			log.Error("pipeline: add documents failed", "job_id", job.ID(), "url", doc.Metadata.URL, "error", err)
			if !opts.IgnoreErrors {
				return fmt.Errorf("pipeline: add documents for %s: %w", doc.Metadata.URL, err)
			}
		}
		return nil
	}

	if err := w.Registry.Scrape(ctx, opts, onProgress); err != nil {
		return fmt.Errorf("pipeline: scrape %s: %w", opts.URL, err)
	}
	return nil
}

func extraFields(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
