package algo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cozo-community/cozo/poison"
	"github.com/cozo-community/cozo/value"
)

type noopOp struct{}

func (noopOp) Run(payload Payload, out Collector, pt poison.Token) error {
	in, err := payload.Input(0)
	if err != nil {
		return err
	}
	for _, t := range in.Tuples {
		out.Put(t)
	}
	return nil
}

func (noopOp) Arity(Payload) (int, error) { return 1, nil }

func TestRegisterLookup(t *testing.T) {
	Register("noop-test", noopOp{})
	op, ok := Lookup("noop-test")
	require.True(t, ok)

	var out SliceCollector
	in := Payload{Inputs: []Input{{Tuples: []value.Tuple{{value.Int(1)}, {value.Int(2)}}}}}
	require.NoError(t, op.Run(in, &out, poison.Token{}))
	require.Equal(t, []value.Tuple{{value.Int(1)}, {value.Int(2)}}, out.Rows)
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("does-not-exist")
	require.False(t, ok)
}

func TestPayloadInputMissing(t *testing.T) {
	p := Payload{}
	_, err := p.Input(0)
	require.ErrorIs(t, err, ErrNoSuchInput)
}

func TestPayloadOption(t *testing.T) {
	p := Payload{Options: map[string]value.Value{"k": value.Int(5)}}
	v, ok := p.Option("k")
	require.True(t, ok)
	i, _ := v.AsInt()
	require.Equal(t, int64(5), i)

	_, ok = p.Option("missing")
	require.False(t, ok)
}
