package ecdsalattice

import (
	"context"
	"fmt"

	"github.com/mahdiidarabi/ecdsa-lattice/internal/lll"
	"github.com/rs/zerolog"
)

// Client provides a high-level API for lattice key recovery.
type Client struct {
	oracle ReductionOracle
	parser DatasetParser
	config AttackConfig
}

// NewClient creates a new client with default settings: the pure-Go LLL
// back-end, the JSON dataset parser and DefaultAttackConfig.
func NewClient() *Client {
	return &Client{
		oracle: lll.NewOracle(),
		parser: &JSONParser{},
		config: DefaultAttackConfig(),
	}
}

// WithOracle sets the lattice reduction back-end.
func (c *Client) WithOracle(oracle ReductionOracle) *Client {
	c.oracle = oracle
	return c
}

// WithParser sets a custom dataset parser.
func (c *Client) WithParser(parser DatasetParser) *Client {
	c.parser = parser
	return c
}

// WithConfig replaces the attack configuration.
func (c *Client) WithConfig(config AttackConfig) *Client {
	c.config = config
	return c
}

// WithMode selects the lattice variant.
func (c *Client) WithMode(mode Mode) *Client {
	c.config.Mode = mode
	return c
}

// WithMaxAttempts sets the number of signature subsets tried.
func (c *Client) WithMaxAttempts(n int) *Client {
	c.config.MaxAttempts = n
	return c
}

// WithSeed fixes the seed of subset selection.
func (c *Client) WithSeed(seed uint64) *Client {
	c.config.Seed = seed
	return c
}

// WithWorkers sets how many attempts run concurrently.
func (c *Client) WithWorkers(n int) *Client {
	c.config.Workers = n
	return c
}

// WithSchedule sets the reduction passes run on each lattice.
func (c *Client) WithSchedule(schedule []int) *Client {
	c.config.Schedule = schedule
	return c
}

// WithMargin sets the number of extra signatures on top of the estimate.
func (c *Client) WithMargin(margin int) *Client {
	c.config.Estimator.Margin = margin
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.config.Logger = logger
	return c
}

// RecoverKey loads the dataset at source and attacks it.
func (c *Client) RecoverKey(ctx context.Context, source string) (*RecoveryResult, error) {
	ds, err := c.parser.ParseDataset(source)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return c.RecoverKeyFromDataset(ctx, ds)
}

// RecoverKeyFromDataset attacks an in-memory dataset.
func (c *Client) RecoverKeyFromDataset(ctx context.Context, ds *Dataset) (*RecoveryResult, error) {
	return NewAttack(c.oracle, c.config).Run(ctx, ds)
}
