package phlex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phlex-run/phlex/pkg/schema"
)

type fakeBackend struct {
	containers map[string]map[string]schema.Schema
	writes     map[string]map[string]any
	committed  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		containers: make(map[string]map[string]schema.Schema),
		writes:     make(map[string]map[string]any),
	}
}

func (f *fakeBackend) CreateContainers(creator string, schemas map[string]schema.Schema) error {
	f.containers[creator] = schemas
	return nil
}

func (f *fakeBackend) RegisterWrite(creator, product string, data any, typeName string) error {
	if f.writes[creator] == nil {
		f.writes[creator] = make(map[string]any)
	}
	f.writes[creator][product] = data
	return nil
}

func (f *fakeBackend) CommitOutput(creator, id string) error {
	f.committed = append(f.committed, creator+"/"+id)
	return nil
}

func (f *fakeBackend) Read(creator, product, id string) (any, string, error) {
	v, ok := f.writes[creator][product]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return v, "string", nil
}

func TestPersistence_RegisterWriteValidatesAgainstSchema(t *testing.T) {
	backend := newFakeBackend()
	p := NewPersistence(backend)

	require.NoError(t, p.CreateContainers("demo::output/write", map[string]schema.Schema{
		"total": schema.Number(),
	}))

	require.NoError(t, p.RegisterWrite("demo::output/write", "total", 42, "int"))

	err := p.RegisterWrite("demo::output/write", "total", "not a number", "int")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPayloadTypeMismatch))
}

func TestPersistence_RegisterWriteWithoutSchemaPassesThrough(t *testing.T) {
	backend := newFakeBackend()
	p := NewPersistence(backend)

	require.NoError(t, p.RegisterWrite("demo::output/write", "untyped", "anything", "string"))
	v, _, err := p.Read("demo::output/write", "untyped", "")
	require.NoError(t, err)
	require.Equal(t, "anything", v)
}

func TestPersistence_CommitOutputDelegates(t *testing.T) {
	backend := newFakeBackend()
	p := NewPersistence(backend)

	require.NoError(t, p.CommitOutput("demo::output/write", "id-1"))
	require.Equal(t, []string{"demo::output/write/id-1"}, backend.committed)
}
