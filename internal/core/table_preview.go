package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// TablePreview is the declared schema of a target table with a few of its rows.
type TablePreview struct {
	Target TableRef    `json:"target"`
	Schema TableSchema `json:"schema"`
	Sample ParsedTable `json:"sample"`
}

// TablePreview fetches the schema and a sample of target concurrently.
func (s *Service) TablePreview(ctx context.Context, target TableRef) (TablePreview, error) {
	if err := target.Validate(); err != nil {
		return TablePreview{}, err
	}

	var (
		schema      TableSchema
		sample      ParsedTable
		describeErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		schema, describeErr = s.store.DescribeTable(ctx, target)
		if describeErr != nil {
			describeErr = fmt.Errorf("describe %s: %w", target, describeErr)
			return describeErr
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sample, err = s.store.SampleRows(ctx, target, s.opts.SampleRows)
		if err != nil {
			return fmt.Errorf("sample %s: %w", target, err)
		}
		return nil
	})
	// A missing table also fails the sample query; report it as missing.
	if err := g.Wait(); err != nil {
		if describeErr != nil {
			return TablePreview{}, describeErr
		}
		return TablePreview{}, err
	}

	return TablePreview{
		Target: target,
		Schema: schema.WithoutRescued(),
		Sample: sample.WithoutRescued(),
	}, nil
}
