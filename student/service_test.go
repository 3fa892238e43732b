package student_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jacentio/roster/internal/ddbtest"
	"github.com/jacentio/roster/store"
	"github.com/jacentio/roster/student"
)

type fixture struct {
	client  *ddbtest.Client
	store   *store.Store
	service *student.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := ddbtest.New("id")
	s := store.New(client, store.DefaultConfig())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		client:  client,
		store:   s,
		service: student.NewService(student.NewDynamoStorage(s), logger),
	}
}

func (f *fixture) create(t *testing.T, body string) student.Record {
	t.Helper()
	r, err := f.service.Create(context.Background(), decodePatch(t, body))
	if err != nil {
		t.Fatalf("create %s: %v", body, err)
	}
	return r
}

func TestParseIdentifier(t *testing.T) {
	canonical := "6f1c2d1e-8a34-4c55-9d6b-2f0b8f7e9a10"

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"canonical", canonical, canonical, false},
		{"upper case", "6F1C2D1E-8A34-4C55-9D6B-2F0B8F7E9A10", canonical, false},
		{"no hyphens", "6f1c2d1e8a344c559d6b2f0b8f7e9a10", canonical, false},
		{"empty", "", "", true},
		{"mongo object id", "507f1f77bcf86cd799439011", "", true},
		{"garbage", "not-a-key", "", true},
		{"too long", canonical + "0", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := student.ParseIdentifier(tt.input)
			if tt.wantErr {
				if !errors.Is(err, student.ErrInvalidIdentifier) {
					t.Errorf("expected ErrInvalidIdentifier, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCreateThenGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create(t, `{"name": "Jo", "age": 10, "address": {"city": "X", "country": "Y"}}`)
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Fatalf("expected UUID identifier, got %q", created.ID)
	}

	got, err := f.service.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	expected := stored()
	expected.ID = created.ID
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %s, got %s", dump(expected), dump(got))
	}
}

func TestCreate_IgnoresSuppliedID(t *testing.T) {
	f := newFixture(t)

	supplied := uuid.NewString()
	created := f.create(t, `{"id": "`+supplied+`", "name": "Jo"}`)
	if created.ID == supplied {
		t.Error("caller-supplied id must not be used")
	}
}

func TestCreate_WritesOnlyPresentFields(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, `{"name": "Jo", "age": null, "address": {}}`)

	items := f.client.Items("students")
	if len(items) != 1 {
		t.Fatalf("expected 1 stored item, got %d", len(items))
	}
	item := items[0]
	if _, ok := item["age"]; ok {
		t.Error("null age must not be written")
	}
	if _, ok := item["address"]; !ok {
		t.Error("empty-but-present address must be written")
	}
	if created.Address == nil || created.Address.City != nil || created.Address.Country != nil {
		t.Errorf("expected empty address, got %s", dump(created))
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), decodePatch(t, `{"age": -3}`))
	if !errors.Is(err, student.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if f.client.Calls("PutItem") != 0 {
		t.Error("invalid input must not reach storage")
	}
}

func TestGet_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Get(ctx, "nope"); !errors.Is(err, student.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
	if _, err := f.service.Get(ctx, uuid.NewString()); !errors.Is(err, student.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_NestedMerge(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, `{"name": "Jo", "age": 10, "address": {"city": "X", "country": "Y"}}`)

	updated, err := f.service.Update(context.Background(), created.ID, decodePatch(t, `{"address": {"city": "Z"}}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	expected := student.Record{
		ID:      created.ID,
		Name:    ptr("Jo"),
		Age:     ptr(10),
		Address: &student.Address{City: ptr("Z"), Country: ptr("Y")},
	}
	if !reflect.DeepEqual(updated, expected) {
		t.Errorf("expected %s, got %s", dump(expected), dump(updated))
	}

	got, _ := f.service.Get(context.Background(), created.ID)
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("stored record differs from returned one: %s", dump(got))
	}
}

func TestUpdate_ScalarLeavesOthers(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, `{"name": "Jo", "age": 10, "address": {"city": "X", "country": "Y"}}`)

	updated, err := f.service.Update(context.Background(), created.ID, decodePatch(t, `{"name": "Jane"}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *updated.Name != "Jane" || *updated.Age != 10 || *updated.Address.City != "X" || *updated.Address.Country != "Y" {
		t.Errorf("unexpected record %s", dump(updated))
	}
}

func TestUpdate_ExplicitNullClears(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, `{"name": "Jo", "age": 10}`)

	updated, err := f.service.Update(context.Background(), created.ID, decodePatch(t, `{"age": null}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Age != nil {
		t.Errorf("expected age cleared, got %d", *updated.Age)
	}
	if updated.Name == nil || *updated.Name != "Jo" {
		t.Errorf("expected name kept, got %s", dump(updated))
	}
}

func TestUpdate_AddressOntoRecordWithout(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, `{"name": "Jo"}`)

	updated, err := f.service.Update(context.Background(), created.ID, decodePatch(t, `{"address": {"country": "Y"}}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Address == nil || updated.Address.City != nil || *updated.Address.Country != "Y" {
		t.Errorf("unexpected address %s", dump(updated))
	}
}

func TestUpdate_EmptyPatch(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, `{"name": "Jo"}`)

	updated, err := f.service.Update(context.Background(), created.ID, decodePatch(t, `{}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !reflect.DeepEqual(updated, created) {
		t.Errorf("expected unchanged record, got %s", dump(updated))
	}
}

func TestUpdate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Update(ctx, "bad", decodePatch(t, `{"name": "x"}`)); !errors.Is(err, student.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}

	_, err := f.service.Update(ctx, uuid.NewString(), decodePatch(t, `{"name": "x"}`))
	if !errors.Is(err, student.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if items := f.client.Items("students"); len(items) != 0 {
		t.Errorf("update of a missing record must not create one, found %d", len(items))
	}

	created := f.create(t, `{"name": "Jo"}`)
	if _, err := f.service.Update(ctx, created.ID, decodePatch(t, `{"age": -1}`)); !errors.Is(err, student.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestUpdate_VanishedBeforeApply(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, `{"name": "Jo"}`)

	f.client.BeforeUpdate = func(*dynamodb.UpdateItemInput) {
		if _, err := f.store.Delete(context.Background(), f.store.Key(created.ID)); err != nil {
			t.Errorf("concurrent delete: %v", err)
		}
	}

	_, err := f.service.Update(context.Background(), created.ID, decodePatch(t, `{"name": "Jane"}`))
	if !errors.Is(err, student.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if items := f.client.Items("students"); len(items) != 0 {
		t.Errorf("update must not resurrect a deleted record, found %d", len(items))
	}
}

func TestDynamoStorage_CustomKeyAttribute(t *testing.T) {
	client := ddbtest.New("pk")
	cfg := store.DefaultConfig()
	cfg.KeyAttribute = "pk"
	s := student.NewService(student.NewDynamoStorage(store.New(client, cfg)), nil)
	ctx := context.Background()

	created, err := s.Create(ctx, decodePatch(t, `{"name": "Jo", "age": 10}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	items := client.Items(cfg.TableName)
	if len(items) != 1 {
		t.Fatalf("expected 1 stored item, got %d", len(items))
	}
	if _, ok := items[0]["id"]; ok {
		t.Error("expected id to be stored under pk only")
	}

	updated, err := s.Update(ctx, created.ID, decodePatch(t, `{"age": 11}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || *updated.Age != 11 {
		t.Errorf("unexpected updated record %s", dump(updated))
	}

	records, err := s.List(ctx, student.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ID != created.ID {
		t.Errorf("expected listed record %s, got %v", created.ID, records)
	}

	if _, err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, `{"name": "Jo", "address": {"city": "X"}}`)

	deleted, err := f.service.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !reflect.DeepEqual(deleted, created) {
		t.Errorf("expected deleted record %s, got %s", dump(created), dump(deleted))
	}

	if _, err := f.service.Get(ctx, created.ID); !errors.Is(err, student.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := f.service.Delete(ctx, created.ID); !errors.Is(err, student.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := f.service.Delete(ctx, "bad"); !errors.Is(err, student.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, `{"name": "a", "age": 9, "address": {"country": "Y"}}`)
	f.create(t, `{"name": "b", "age": 30, "address": {"country": "Z"}}`)
	c := f.create(t, `{"name": "c", "age": 20, "address": {"country": "Y"}}`)
	f.create(t, `{"name": "d"}`)

	ids := func(records []student.Record) []string {
		out := make([]string, 0, len(records))
		for _, r := range records {
			out = append(out, r.ID)
		}
		sort.Strings(out)
		return out
	}
	sorted := func(in ...string) []string {
		sort.Strings(in)
		return in
	}

	tests := []struct {
		name     string
		filter   student.Filter
		expected []string
	}{
		{"country", student.Filter{Country: "Y"}, sorted(a.ID, c.ID)},
		{"country and age", student.Filter{Country: "Y", MinAge: ptr(10)}, sorted(c.ID)},
		{"no match", student.Filter{Country: "Q"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.service.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if got == nil {
				t.Fatal("expected empty slice, not nil")
			}
			if !reflect.DeepEqual(ids(got), tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, ids(got))
			}
		})
	}

	all, err := f.service.List(ctx, student.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 records, got %d", len(all))
	}
}

func TestList_StorageError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.client.FailNext("Scan", boom)

	if _, err := f.service.List(context.Background(), student.Filter{}); !errors.Is(err, boom) {
		t.Errorf("expected storage error, got %v", err)
	}
}
