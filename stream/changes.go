// Package stream consumes DynamoDB Streams events from the students table
// and reports each record-level change to a Notifier.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/roster/store"
	"github.com/jacentio/roster/student"
)

// Kind classifies a change.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// Change describes one stream record. Before and After are nil when the
// stream view type omits the corresponding image.
type Change struct {
	Kind   Kind
	ID     string
	Key    store.PK
	Before *student.Record
	After  *student.Record

	// Fields lists the top-level fields that differ between Before and
	// After. Set only for updates with both images.
	Fields []student.Field
}

// Notifier receives decoded changes.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change) error

// Notify calls f(ctx, c).
func (f NotifierFunc) Notify(ctx context.Context, c Change) error {
	return f(ctx, c)
}

// LogNotifier writes one Info line per change.
func LogNotifier(logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return NotifierFunc(func(_ context.Context, c Change) error {
		logger.Info("student changed",
			"kind", c.Kind,
			"studentID", c.ID,
			"fields", c.Fields,
		)
		return nil
	})
}

// Handler processes DynamoDB stream events for the students table.
type Handler struct {
	notifier Notifier
	codec    student.Codec
	logger   *slog.Logger
}

// NewHandler creates a new stream handler decoding images with codec.
// A nil notifier logs changes through logger.
func NewHandler(notifier Notifier, codec student.Codec, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier(logger)
	}
	return &Handler{
		notifier: notifier,
		codec:    codec,
		logger:   logger,
	}
}

// HandleChanges processes a batch of stream records in order.
// This function is designed to be used as an AWS Lambda handler; an error
// fails the batch so the stream retries it.
func (h *Handler) HandleChanges(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	var kind Kind
	switch events.DynamoDBOperationType(record.EventName) {
	case events.DynamoDBOperationTypeInsert:
		kind = KindCreated
	case events.DynamoDBOperationTypeModify:
		kind = KindUpdated
	case events.DynamoDBOperationTypeRemove:
		kind = KindDeleted
	default:
		return nil
	}

	c := Change{
		Kind: kind,
		ID:   getStringAttr(record.Change.Keys, h.keyAttribute()),
		Key:  ConvertStreamKey(record.Change.Keys),
	}

	var err error
	if kind != KindCreated {
		if c.Before, err = h.decodeImage(record.Change.OldImage); err != nil {
			return fmt.Errorf("old image of %s: %w", c.ID, err)
		}
	}
	if kind != KindDeleted {
		if c.After, err = h.decodeImage(record.Change.NewImage); err != nil {
			return fmt.Errorf("new image of %s: %w", c.ID, err)
		}
	}
	if c.ID == "" {
		// keys missing from the record; fall back to whichever image exists
		if c.After != nil {
			c.ID = c.After.ID
		} else if c.Before != nil {
			c.ID = c.Before.ID
		}
	}
	if c.Before != nil && c.After != nil {
		c.Fields = changedFields(*c.Before, *c.After)
	}

	if err := h.notifier.Notify(ctx, c); err != nil {
		return fmt.Errorf("notify %s %s: %w", c.Kind, c.ID, err)
	}
	return nil
}

func (h *Handler) keyAttribute() string {
	if h.codec.KeyAttribute == "" {
		return student.DefaultKeyAttribute
	}
	return h.codec.KeyAttribute
}

func (h *Handler) decodeImage(image map[string]events.DynamoDBAttributeValue) (*student.Record, error) {
	if len(image) == 0 {
		return nil, nil
	}
	item, err := ConvertImage(image)
	if err != nil {
		return nil, err
	}
	r, err := h.codec.FromItem(item)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func changedFields(before, after student.Record) []student.Field {
	var fields []student.Field
	if !reflect.DeepEqual(before.Name, after.Name) {
		fields = append(fields, student.FieldName)
	}
	if !reflect.DeepEqual(before.Age, after.Age) {
		fields = append(fields, student.FieldAge)
	}
	if !reflect.DeepEqual(before.Address, after.Address) {
		fields = append(fields, student.FieldAddress)
	}
	return fields
}
