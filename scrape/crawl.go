package scrape

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/docsvault/urlutil"
)

// queueEntry is one pending crawl target.
type queueEntry struct {
	url   string
	depth int
}

// itemResult is what processItem returns for one queue entry.
type itemResult struct {
	doc   *Document
	links []string
}

// processItemFunc fetches and processes one URL, per §4.8.2. It is a
// function value rather than a method so strategies can share crawl
// without sharing a fetch/process implementation.
type processItemFunc func(ctx context.Context, opts Options, rawURL string) (itemResult, error)

// runBaseCrawl implements the shared bounded breadth-first crawl, per
// §4.8.1: pop a batch sized to min(maxConcurrency, remaining pages, queue
// length), run it concurrently, union discovered links, then dedup against
// visited only after the whole batch completes.
func runBaseCrawl(ctx context.Context, opts Options, startURL string, onProgress ProgressFunc, process processItemFunc, normalize urlutil.Options, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	normalizedStart := urlutil.Normalize(startURL, normalize)

	visited := map[string]bool{normalizedStart: true}
	queue := []queueEntry{{url: startURL, depth: 0}}
	pageCount := 0

	for len(queue) > 0 && pageCount < opts.MaxPages {
		batchSize := opts.MaxConcurrency
		if remaining := opts.MaxPages - pageCount; remaining < batchSize {
			batchSize = remaining
		}
		if len(queue) < batchSize {
			batchSize = len(queue)
		}
		batch := queue[:batchSize]
		queue = queue[batchSize:]

		results := make([]itemResult, batchSize)
		errs := make([]error, batchSize)
		var wg sync.WaitGroup
		for i, entry := range batch {
			if entry.depth > opts.Depth() {
				continue
			}
			wg.Add(1)
			go func(i int, entry queueEntry) {
				defer wg.Done()
				res, err := process(ctx, opts, entry.url)
				results[i] = res
				errs[i] = err
			}(i, entry)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return err
		}

		newLinks := make(map[string]int)
		for i, entry := range batch {
			if entry.depth > opts.Depth() {
				continue
			}
			if err := errs[i]; err != nil {
				logger.Warn("scrape: process item failed", "url", entry.url, "error", err)
				if !opts.IgnoreErrors {
					return err
				}
				continue
			}
			res := results[i]
			if res.doc != nil {
				pageCount++
				if err := onProgress(*res.doc); err != nil {
					logger.Warn("scrape: progress callback failed", "url", entry.url, "error", err)
					if !opts.IgnoreErrors {
						return err
					}
				}
			}
			for _, link := range res.links {
				if _, ok := newLinks[link]; !ok {
					newLinks[link] = entry.depth + 1
				}
			}
		}

		for link, depth := range newLinks {
			norm := urlutil.Normalize(link, normalize)
			if visited[norm] {
				continue
			}
			visited[norm] = true
			queue = append(queue, queueEntry{url: link, depth: depth})
		}
	}
	return nil
}
