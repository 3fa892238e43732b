package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/urfave/cli"

	"github.com/jacentio/roster/stream"
	"github.com/jacentio/roster/student"
)

func runLambda(c *cli.Context) error {
	opts := getOptions(c)
	logger := opts.logger(c.App.ErrWriter)

	storage, closeStorage, err := opts.openStorage(context.Background())
	if err != nil {
		return err
	}
	defer closeStorage()

	lambda.Start(httpadapter.New(newHTTPServer(c, storage, logger)).ProxyWithContext)
	return nil
}

func runStream(c *cli.Context) error {
	opts := getOptions(c)
	logger := opts.logger(c.App.ErrWriter)

	codec := student.Codec{KeyAttribute: opts.keyAttribute}
	lambda.Start(stream.NewHandler(stream.LogNotifier(logger), codec, logger).HandleChanges)
	return nil
}
