package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/urfave/cli"

	"github.com/jacentio/roster/internal/boltstore"
	"github.com/jacentio/roster/store"
	"github.com/jacentio/roster/student"
)

const (
	backendDynamoDB = "dynamodb"
	backendBolt     = "bolt"
)

type options struct {
	backend      string
	table        string
	keyAttribute string
	scanSegments int
	region       string
	profile      string
	endpoint     string
	boltPath     string
	logLevel     slog.Level
	logFormat    string
}

func parseOptions(c *cli.Context) (*options, error) {
	opts := &options{
		backend:      strings.ToLower(c.GlobalString("backend")),
		table:        c.GlobalString("table"),
		keyAttribute: c.GlobalString("key-attribute"),
		scanSegments: c.GlobalInt("scan-segments"),
		region:       c.GlobalString("region"),
		profile:      c.GlobalString("profile"),
		endpoint:     c.GlobalString("endpoint"),
		boltPath:     c.GlobalString("bolt-path"),
		logFormat:    strings.ToLower(c.GlobalString("log-format")),
	}

	switch opts.backend {
	case backendDynamoDB, backendBolt:
	default:
		return nil, fmt.Errorf("invalid backend: %q", opts.backend)
	}

	switch opts.logFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format: %q", opts.logFormat)
	}

	if err := opts.logLevel.UnmarshalText([]byte(c.GlobalString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	return opts, nil
}

func getOptions(c *cli.Context) *options {
	return c.App.Metadata["options"].(*options)
}

func (o *options) logger(w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: o.logLevel}
	if o.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func (o *options) storeConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.TableName = o.table
	if o.keyAttribute != "" {
		cfg.KeyAttribute = o.keyAttribute
	}
	cfg.ScanSegments = o.scanSegments
	return cfg
}

// openStorage returns the configured backend and a function releasing it.
func (o *options) openStorage(ctx context.Context) (student.Storage, func() error, error) {
	if o.backend == backendBolt {
		s, err := boltstore.Open(boltstore.Config{Path: o.boltPath})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}

	client, err := o.dynamoClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	s := store.New(client, o.storeConfig())
	return student.NewDynamoStorage(s), func() error { return nil }, nil
}

func (o *options) dynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(opts *dynamodb.Options) {
		if o.endpoint != "" {
			opts.BaseEndpoint = aws.String(o.endpoint)
		}
	}), nil
}
