// Command rosterd runs the student record service, either as a standalone
// HTTP server or as AWS Lambda handlers.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "rosterd"
	app.Usage = "student record service"
	app.Version = version

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "backend, b",
			Value:  backendDynamoDB,
			Usage:  "storage `BACKEND` [dynamodb|bolt]",
			EnvVar: "ROSTER_BACKEND",
		},
		cli.StringFlag{
			Name:   "table, t",
			Value:  "students",
			Usage:  "DynamoDB `TABLE` name",
			EnvVar: "ROSTER_TABLE",
		},
		cli.StringFlag{
			Name:   "key-attribute",
			Value:  "id",
			Usage:  "DynamoDB partition key `ATTRIBUTE` holding the student id",
			EnvVar: "ROSTER_KEY_ATTRIBUTE",
		},
		cli.IntFlag{
			Name:   "scan-segments",
			Value:  1,
			Usage:  "parallel DynamoDB scan `SEGMENTS` [1..64]",
			EnvVar: "ROSTER_SCAN_SEGMENTS",
		},
		cli.StringFlag{
			Name:   "region",
			Usage:  "AWS `REGION`, overrides the shared configuration",
			EnvVar: "ROSTER_REGION",
		},
		cli.StringFlag{
			Name:   "profile",
			Usage:  "AWS shared configuration `PROFILE`",
			EnvVar: "ROSTER_PROFILE",
		},
		cli.StringFlag{
			Name:   "endpoint",
			Usage:  "DynamoDB endpoint `URL`, e.g. for DynamoDB Local",
			EnvVar: "ROSTER_ENDPOINT",
		},
		cli.StringFlag{
			Name:   "bolt-path",
			Value:  "roster.db",
			Usage:  "bolt database `FILE`",
			EnvVar: "ROSTER_BOLT_PATH",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "info",
			Usage:  "log `LEVEL` [debug|info|warn|error]",
			EnvVar: "ROSTER_LOG_LEVEL",
		},
		cli.StringFlag{
			Name:   "log-format",
			Value:  "text",
			Usage:  "log `FORMAT` [text|json]",
			EnvVar: "ROSTER_LOG_FORMAT",
		},
	}

	httpFlags := []cli.Flag{
		cli.Float64Flag{
			Name:   "rate-limit",
			Usage:  "requests per `SECOND` across all clients, 0 disables",
			EnvVar: "ROSTER_RATE_LIMIT",
		},
		cli.IntFlag{
			Name:   "rate-burst",
			Value:  10,
			Usage:  "rate limiter burst `SIZE`",
			EnvVar: "ROSTER_RATE_BURST",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "serve",
			Usage: "run the HTTP server",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:   "listen, l",
					Value:  ":8000",
					Usage:  "listen on `HOST:PORT`",
					EnvVar: "ROSTER_LISTEN",
				},
			}, httpFlags...),
			Action: runServe,
		},
		{
			Name:   "lambda",
			Usage:  "serve the HTTP API as an API Gateway proxy Lambda",
			Flags:  httpFlags,
			Action: runLambda,
		},
		{
			Name:   "stream",
			Usage:  "run the DynamoDB Streams change handler as a Lambda",
			Action: runStream,
		},
	}

	app.Before = func(c *cli.Context) error {
		opts, err := parseOptions(c)
		if err != nil {
			return err
		}
		app.Metadata = map[string]interface{}{"options": opts}
		return nil
	}

	return app
}
