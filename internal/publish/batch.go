package publish

import (
	"context"
	"errors"

	"github.com/clean-dependency-project/hangarpub/internal/manifest"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel uploads in PublishAll and SyncPages.
const DefaultConcurrency = 4

// Job is one named publication to upload.
type Job struct {
	Name  string
	Input manifest.PublicationInput
}

// Outcome pairs a job with its result or error.
type Outcome struct {
	Name   string
	Result *Result
	Err    error
}

// PublishAll uploads every job concurrently. A failing job does not cancel
// the others; outcomes keep job order and the returned error joins all failures.
func (p *Publisher) PublishAll(ctx context.Context, jobs []Job, concurrency int) ([]Outcome, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := p.Publish(ctx, job.Name, job.Input)
			outcomes[i] = Outcome{Name: job.Name, Result: res, Err: err}
			if err != nil {
				p.stderr.Error("publish failed", "publication", job.Name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, joinErrors(outcomes)
}

// SyncPages edits every page concurrently and joins the failures.
func (p *Publisher) SyncPages(ctx context.Context, pages []PageSyncInput, concurrency int) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	errs := make([]error, len(pages))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, page := range pages {
		g.Go(func() error {
			if err := p.SyncPage(ctx, page); err != nil {
				errs[i] = err
				p.stderr.Error("page sync failed", "slug", page.Slug, "page", page.Page.Name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func joinErrors(outcomes []Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
