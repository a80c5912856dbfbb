package values_test

import (
	"sync"
	"testing"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/basic"
	"github.com/backkem/zwave/pkg/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const node cc.NodeID = 4

// staticProfile is a values.Profile backed by maps.
type staticProfile struct {
	versions  map[cc.CommandClass]uint8
	overrides map[values.ValueID]values.MetadataPatch
	partials  map[uint16][]values.PartialParameter
}

func (p *staticProfile) DeclaredVersion(_ cc.NodeID, class cc.CommandClass) (uint8, bool) {
	v, ok := p.versions[class]
	return v, ok
}

func (p *staticProfile) MetadataOverride(_ cc.NodeID, id values.ValueID) (values.MetadataPatch, bool) {
	m, ok := p.overrides[id]
	return m, ok
}

func (p *staticProfile) PartialParameters(_ cc.NodeID, param uint16) []values.PartialParameter {
	return p.partials[param]
}

// level is a test Exposer reporting one number with bounds.
type level struct {
	value    int
	min, max float64
	override bool
}

func (*level) CommandClass() cc.CommandClass   { return cc.CommandClass(0x31) }
func (*level) CommandID() uint8                { return 0x05 }
func (*level) Serialize(uint8) ([]byte, error) { return nil, nil }

func (l *level) ExposeValues(ctx values.ExposeContext) []values.Update {
	patch := values.NumberPatch("Level", values.Ptr(l.min), values.Ptr(l.max))
	patch.Override = l.override
	return []values.Update{values.ValueUpdate(levelID(ctx.Endpoint), l.value, patch)}
}

func levelID(endpoint uint8) values.ValueID {
	return values.ValueID{CommandClass: cc.CommandClass(0x31), Endpoint: endpoint, Property: values.Name("level")}
}

func command(t *testing.T, fields cc.Fields) *cc.Command {
	t.Helper()
	cmd, err := cc.NewCommand(node, 0, fields)
	require.NoError(t, err)
	return cmd
}

func basicReportV2(t *testing.T) *cc.Command {
	cmd := command(t, &basic.Report{CurrentValue: 55, HasTarget: true, TargetValue: 66})
	cmd.Version = 2
	return cmd
}

// TestDirectory_BasicReport exposes the values of a version 2 report.
func TestDirectory_BasicReport(t *testing.T) {
	dir := values.NewDirectory(values.DirectoryConfig{})

	updates, err := dir.OnCommandDecoded(basicReportV2(t))
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, "currentValue", updates[0].ID.Property.Name())
	assert.Equal(t, 55, updates[0].Value)
	assert.Equal(t, "targetValue", updates[1].ID.Property.Name())
	assert.Equal(t, 66, updates[1].Value)

	m, ok := dir.Metadata(node, updates[1].ID)
	require.True(t, ok)
	assert.True(t, m.Writeable)
	assert.Equal(t, values.TypeNumber, m.Type)
	assert.Len(t, dir.ValueIDs(node), 3)
}

// TestDirectory_DeclaredVersionGates hides version 2 fields from a node
// that declares version 1, even though the frame carried them.
func TestDirectory_DeclaredVersionGates(t *testing.T) {
	profile := &staticProfile{versions: map[cc.CommandClass]uint8{cc.Basic: 1}}
	dir := values.NewDirectory(values.DirectoryConfig{Profile: profile})

	updates, err := dir.OnCommandDecoded(basicReportV2(t))
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "currentValue", updates[0].ID.Property.Name())
}

func TestDirectory_AdditiveMetadata(t *testing.T) {
	dir := values.NewDirectory(values.DirectoryConfig{})
	id := levelID(0)

	_, err := dir.OnCommandDecoded(command(t, &level{value: 1, min: 0, max: 10}))
	require.NoError(t, err)
	_, err = dir.OnCommandDecoded(command(t, &level{value: 2, min: 5, max: 50}))
	require.NoError(t, err)

	m, ok := dir.Metadata(node, id)
	require.True(t, ok)
	require.NotNil(t, m.Min)
	require.NotNil(t, m.Max)
	assert.Equal(t, 0.0, *m.Min, "bounds regressed without an override")
	assert.Equal(t, 10.0, *m.Max)

	_, err = dir.OnCommandDecoded(command(t, &level{value: 3, min: 5, max: 50, override: true}))
	require.NoError(t, err)
	m, _ = dir.Metadata(node, id)
	assert.Equal(t, 5.0, *m.Min)
	assert.Equal(t, 50.0, *m.Max)
}

func TestDirectory_ProfileOverride(t *testing.T) {
	id := levelID(0)
	profile := &staticProfile{overrides: map[values.ValueID]values.MetadataPatch{
		id: {Label: values.Ptr("Brightness"), Max: values.Ptr(99.0), Unit: values.Ptr("%")},
	}}
	dir := values.NewDirectory(values.DirectoryConfig{Profile: profile})

	updates, err := dir.OnCommandDecoded(command(t, &level{value: 1, min: 0, max: 255}))
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Metadata)
	assert.Equal(t, "Brightness", *updates[0].Metadata.Label)

	m, ok := dir.Metadata(node, id)
	require.True(t, ok)
	assert.Equal(t, "Brightness", m.Label)
	assert.Equal(t, "%", m.Unit)
	assert.Equal(t, 99.0, *m.Max)
	assert.Equal(t, 0.0, *m.Min)
}

func TestDirectory_SkipsNonExposers(t *testing.T) {
	var published []values.Batch
	dir := values.NewDirectory(values.DirectoryConfig{
		Sink: values.SinkFunc(func(b values.Batch) { published = append(published, b) }),
	})

	updates, err := dir.OnCommandDecoded(command(t, &basic.Get{}))
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Empty(t, published)

	_, err = dir.OnCommandDecoded(nil)
	assert.Error(t, err)
}

func TestDirectory_InnermostCommand(t *testing.T) {
	outer := command(t, &level{value: 9})
	inner := command(t, &level{value: 7})
	inner.Endpoint = 2
	outer.Encapsulated = inner

	dir := values.NewDirectory(values.DirectoryConfig{})
	updates, err := dir.OnCommandDecoded(outer)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, 7, updates[0].Value)
	assert.Equal(t, uint8(2), updates[0].ID.Endpoint)
}

func TestDirectory_RemoveNode(t *testing.T) {
	dir := values.NewDirectory(values.DirectoryConfig{})
	_, err := dir.OnCommandDecoded(command(t, &level{value: 1}))
	require.NoError(t, err)
	require.NotEmpty(t, dir.ValueIDs(node))

	dir.RemoveNode(node)
	assert.Empty(t, dir.ValueIDs(node))
	_, ok := dir.Metadata(node, levelID(0))
	assert.False(t, ok)
}

func TestBusSink(t *testing.T) {
	sink := values.NewBusSink(nil)
	var (
		mu  sync.Mutex
		got []values.Batch
	)
	handler := func(b values.Batch) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, b)
	}
	require.NoError(t, sink.Subscribe(handler))

	dir := values.NewDirectory(values.DirectoryConfig{Sink: sink})
	_, err := dir.OnCommandDecoded(basicReportV2(t))
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, node, got[0].NodeID)
	assert.Equal(t, cc.Basic, got[0].Command.CommandClass)
	assert.Len(t, got[0].Updates, 3)
	assert.False(t, got[0].Timestamp.IsZero())
	mu.Unlock()

	require.NoError(t, sink.Unsubscribe(handler))
	_, err = dir.OnCommandDecoded(basicReportV2(t))
	require.NoError(t, err)
	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()
}

func TestBusSink_Async(t *testing.T) {
	sink := values.NewBusSink(nil)
	done := make(chan values.Batch, 1)
	require.NoError(t, sink.SubscribeAsync(func(b values.Batch) { done <- b }, true))

	sink.Publish(values.Batch{NodeID: node})
	sink.Wait()
	b := <-done
	assert.Equal(t, node, b.NodeID)
}
