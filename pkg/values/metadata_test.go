package values_test

import (
	"testing"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataPatch_ApplyStates(t *testing.T) {
	m := values.MetadataPatch{States: map[int64]string{1: "Air temperature"}}.Apply(values.Metadata{})

	narrowed := values.MetadataPatch{States: map[int64]string{5: "Humidity"}}.Apply(m)
	assert.Equal(t, map[int64]string{1: "Air temperature", 5: "Humidity"}, narrowed.States)
	assert.Len(t, m.States, 1, "Apply mutated its input")

	replaced := values.MetadataPatch{States: map[int64]string{5: "Humidity"}, Override: true}.Apply(narrowed)
	assert.Equal(t, map[int64]string{5: "Humidity"}, replaced.States)
}

func TestMetadataPatch_Merge(t *testing.T) {
	a := values.MetadataPatch{
		Label:      values.Ptr("Level"),
		Min:        values.Ptr(0.0),
		States:     map[int64]string{0: "off"},
		CCSpecific: map[string]any{"sensorType": 1},
	}
	b := values.MetadataPatch{
		Label:      values.Ptr("Brightness"),
		States:     map[int64]string{1: "on"},
		CCSpecific: map[string]any{"scale": 0},
		Override:   true,
	}

	merged := a.Merge(b)
	assert.Equal(t, "Brightness", *merged.Label)
	assert.Equal(t, 0.0, *merged.Min)
	assert.Equal(t, map[int64]string{1: "on"}, merged.States)
	assert.Equal(t, map[string]any{"sensorType": 1, "scale": 0}, merged.CCSpecific)
	assert.True(t, merged.Override)
	assert.Len(t, a.CCSpecific, 1, "Merge mutated its receiver")
}

func TestMetadataPatch_CCSpecific(t *testing.T) {
	m := values.MetadataPatch{CCSpecific: map[string]any{"sensorType": 1}}.Apply(values.Metadata{})
	m = values.MetadataPatch{CCSpecific: map[string]any{"scale": 2}}.Apply(m)
	assert.Equal(t, map[string]any{"sensorType": 1, "scale": 2}, m.CCSpecific)
}

func TestNumberPatch(t *testing.T) {
	p := values.NumberPatch("Level", nil, values.Ptr(99.0)).AsWriteable()
	m := p.Apply(values.Metadata{})
	assert.Equal(t, values.TypeNumber, m.Type)
	assert.True(t, m.Readable)
	assert.True(t, m.Writeable)
	assert.Nil(t, m.Min)
	require.NotNil(t, m.Max)
	assert.Equal(t, 99.0, *m.Max)

	b := values.BooleanPatch("Low").Apply(values.Metadata{})
	assert.Equal(t, values.TypeBoolean, b.Type)
	assert.False(t, b.Writeable)
}

func TestProperty(t *testing.T) {
	tests := []struct {
		name string
		prop values.Property
		text string
	}{
		{"absent", values.Property{}, ""},
		{"name", values.Name("targetValue"), "targetValue"},
		{"index", values.Index(42), "#42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := tt.prop.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.text, string(text))

			var back values.Property
			require.NoError(t, back.UnmarshalText(text))
			assert.Equal(t, tt.prop, back)
		})
	}

	var p values.Property
	assert.Error(t, p.UnmarshalText([]byte("#x")))
}

func TestValueID_MapKey(t *testing.T) {
	a := values.ValueID{CommandClass: cc.Configuration, Property: values.Index(3), PropertyKey: values.Index(0x0C)}
	b := values.ValueID{CommandClass: cc.Configuration, Property: values.Index(3), PropertyKey: values.Index(0x0C)}
	seen := map[values.ValueID]bool{a: true}
	assert.True(t, seen[b])
	assert.Equal(t, "Configuration/0/3/12", a.String())
}
