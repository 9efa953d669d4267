package funcs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoFn(name string) Function {
	return Function{
		Name:        name,
		Description: "echoes its input",
		Schema: Schema{
			"text": {Type: "string", Required: true},
		},
		Handler: func(_ context.Context, args Args) (string, error) {
			return args.String("text"), nil
		},
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(echoFn("echo")))
	assert.True(t, reg.Has("echo"))
	assert.Equal(t, 1, reg.Len())

	err := reg.Register(echoFn("echo"))
	assert.Error(t, err, "duplicate names must be rejected")

	err = reg.Register(Function{Name: "broken"})
	assert.Error(t, err, "nil handlers must be rejected")

	err = reg.Register(Function{Handler: func(context.Context, Args) (string, error) { return "", nil }})
	assert.Error(t, err, "empty names must be rejected")

	reg.Freeze()
	err = reg.Register(echoFn("late"))
	assert.Error(t, err, "registration after freeze must fail")
	assert.True(t, reg.Has("echo"))
}

func TestRegistryDeclarationsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, reg.Register(echoFn(name)))
	}

	decls := reg.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, "alpha", decls[0].Name)
	assert.Equal(t, "mike", decls[1].Name)
	assert.Equal(t, "zulu", decls[2].Name)
}

func TestResolveNotFound(t *testing.T) {
	resolver := NewResolver(NewRegistry(), nil)

	_, err := resolver.Resolve(context.Background(), "unknown_fn", json.RawMessage(`{}`))
	var fe *FuncError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrNotFound, fe.Kind)
	assert.Equal(t, "unknown_fn", fe.Name)
}

func TestResolveInvalidArguments(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Function{
		Name: "get_hours",
		Schema: Schema{
			"day": {Type: "string", Required: true},
		},
		Handler: func(_ context.Context, args Args) (string, error) {
			return "9-17", nil
		},
	})
	resolver := NewResolver(reg, nil)

	tests := []struct {
		name string
		args string
	}{
		{name: "wrong type", args: `{"day": 5}`},
		{name: "missing required", args: `{}`},
		{name: "malformed json", args: `{"day":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), "get_hours", json.RawMessage(tt.args))
			var fe *FuncError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, ErrInvalidArguments, fe.Kind)
		})
	}
}

func TestResolveHandlerFailed(t *testing.T) {
	boom := errors.New("backend down")
	reg := NewRegistry()
	reg.MustRegister(Function{
		Name: "flaky",
		Handler: func(context.Context, Args) (string, error) {
			return "", boom
		},
	})
	resolver := NewResolver(reg, nil)

	_, err := resolver.Resolve(context.Background(), "flaky", nil)
	var fe *FuncError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrHandlerFailed, fe.Kind)
	assert.ErrorIs(t, err, boom)
}

func TestResolveSuccess(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoFn("echo"))
	resolver := NewResolver(reg, nil)

	result, err := resolver.Resolve(context.Background(), "echo", json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestSchemaValidation(t *testing.T) {
	schema := Schema{
		"date":  {Type: "string", Format: "date-time", Required: true},
		"count": {Type: "integer"},
		"level": {Type: "string", Enum: []any{"low", "high"}},
		"force": {Type: "boolean"},
	}

	tests := []struct {
		name    string
		args    Args
		wantErr bool
	}{
		{name: "valid", args: Args{"date": "2025-06-01T10:00:00Z", "count": float64(3)}},
		{name: "missing required", args: Args{"count": float64(3)}, wantErr: true},
		{name: "wrong string type", args: Args{"date": 5.0}, wantErr: true},
		{name: "wrong int type", args: Args{"date": "x", "count": "three"}, wantErr: true},
		{name: "enum ok", args: Args{"date": "x", "level": "low"}},
		{name: "enum violation", args: Args{"date": "x", "level": "medium"}, wantErr: true},
		{name: "wrong bool", args: Args{"date": "x", "force": "yes"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.ValidateArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMarshalJSONSchema(t *testing.T) {
	schema := Schema{
		"date": {Type: "string", Format: "date-time", Description: "Date of the meeting", Required: true},
	}

	var doc struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(schema.MarshalJSONSchema(), &doc))

	assert.Equal(t, "object", doc.Type)
	assert.Equal(t, []string{"date"}, doc.Required)
	assert.Equal(t, "string", doc.Properties["date"]["type"])
	assert.Equal(t, "date-time", doc.Properties["date"]["format"])
}
