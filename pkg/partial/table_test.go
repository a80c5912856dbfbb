package partial_test

import (
	"testing"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/association"
	"github.com/backkem/zwave/pkg/commandclass/basic"
	"github.com/backkem/zwave/pkg/commandclass/configuration"
	"github.com/backkem/zwave/pkg/partial"
	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const node cc.NodeID = 7

func nameReport(t *testing.T, param uint16, toFollow uint8, name string) *cc.Command {
	t.Helper()
	cmd, err := cc.NewCommand(node, 0, &configuration.NameReport{Parameter: param, ReportsToFollow: toFollow, Name: name})
	require.NoError(t, err)
	return cmd
}

func bulkReport(t *testing.T, offset uint16, toFollow uint8, values ...int64) *cc.Command {
	t.Helper()
	raw := make([]uint32, len(values))
	for i, v := range values {
		raw[i] = uint32(v)
	}
	cmd, err := cc.NewCommand(node, 0, &configuration.BulkReport{
		Offset: offset, ReportsToFollow: toFollow, Size: 1, Values: values, Raw: raw,
	})
	require.NoError(t, err)
	return cmd
}

// feed adds every command and returns the merged command, failing if
// anything but the last command completes a session.
func feed(t *testing.T, table *partial.Table, cmds ...*cc.Command) *cc.Command {
	t.Helper()
	for i, cmd := range cmds {
		merged, done, err := table.Add(cmd)
		require.NoError(t, err)
		if i < len(cmds)-1 {
			require.False(t, done, "part %d completed the session", i)
			require.Nil(t, merged)
			continue
		}
		require.True(t, done, "last part did not complete the session")
		return merged
	}
	return nil
}

func mergedName(t *testing.T, cmd *cc.Command) string {
	t.Helper()
	require.NotNil(t, cmd)
	nr, ok := cmd.Fields.(*configuration.NameReport)
	require.True(t, ok, "merged fields are %T", cmd.Fields)
	return nr.Name
}

// TestTable_MergesInOrder reassembles a name sent in four parts.
func TestTable_MergesInOrder(t *testing.T) {
	table := partial.NewTable(partial.Config{})
	defer table.Close()

	merged := feed(t, table,
		nameReport(t, 3, 3, "abc"),
		nameReport(t, 3, 2, "def"),
		nameReport(t, 3, 1, "ghi"),
		nameReport(t, 3, 0, "jkl"),
	)
	assert.Equal(t, "abcdefghijkl", mergedName(t, merged))
	assert.Equal(t, node, merged.NodeID)
	assert.Equal(t, cc.Configuration, merged.CommandClass)
	assert.Equal(t, configuration.CmdNameReport, merged.CommandID)
	assert.Zero(t, merged.Fields.(*configuration.NameReport).ReportsToFollow)
	assert.Zero(t, table.Count())
}

// TestTable_FoldsRetransmissions feeds duplicated parts, as a node does
// when it retransmits.
func TestTable_FoldsRetransmissions(t *testing.T) {
	table := partial.NewTable(partial.Config{})
	defer table.Close()

	merged := feed(t, table,
		nameReport(t, 3, 3, "abc"),
		nameReport(t, 3, 2, "def"),
		nameReport(t, 3, 2, "def"),
		nameReport(t, 3, 1, "ghi"),
		nameReport(t, 3, 1, "ghi"),
		nameReport(t, 3, 0, "jkl"),
	)
	assert.Equal(t, "abcdefghijkl", mergedName(t, merged))

	// A retransmission arriving after later parts keeps its position.
	merged = feed(t, table,
		nameReport(t, 3, 3, "abc"),
		nameReport(t, 3, 2, "def"),
		nameReport(t, 3, 1, "ghi"),
		nameReport(t, 3, 2, "def"),
		nameReport(t, 3, 3, "abc"),
		nameReport(t, 3, 1, "ghi"),
		nameReport(t, 3, 0, "jkl"),
	)
	assert.Equal(t, "abcdefghijkl", mergedName(t, merged))
	assert.Zero(t, table.Count())
}

// TestTable_LostPart checks that a report missing a part is dropped and
// its remaining parts are not published.
func TestTable_LostPart(t *testing.T) {
	var dropped []error
	table := partial.NewTable(partial.Config{
		OnAbandoned: func(key partial.Key, err error) {
			assert.Equal(t, uint32(3), key.Discriminator)
			dropped = append(dropped, err)
		},
	})
	defer table.Close()

	for _, cmd := range []*cc.Command{
		nameReport(t, 3, 3, "abc"),
		nameReport(t, 3, 1, "ghi"),
		nameReport(t, 3, 1, "ghi"),
		nameReport(t, 3, 0, "jkl"),
	} {
		merged, done, err := table.Add(cmd)
		require.NoError(t, err)
		require.False(t, done)
		require.Nil(t, merged)
	}
	require.Len(t, dropped, 1)
	assert.ErrorIs(t, dropped[0], cc.ErrSessionIncomplete)
	assert.Zero(t, table.Count())
	assert.Empty(t, table.Sessions(node))

	// The next report on the same parameter is reassembled normally.
	merged := feed(t, table,
		nameReport(t, 3, 1, "ab"),
		nameReport(t, 3, 0, "cd"),
	)
	assert.Equal(t, "abcd", mergedName(t, merged))

	// A new report replacing the tail of a dropped one is collected.
	_, _, err := table.Add(nameReport(t, 3, 4, "x"))
	require.NoError(t, err)
	_, _, err = table.Add(nameReport(t, 3, 2, "y"))
	require.NoError(t, err)
	merged = feed(t, table,
		nameReport(t, 3, 5, "new "),
		nameReport(t, 3, 4, "na"),
		nameReport(t, 3, 3, "m"),
		nameReport(t, 3, 2, "e"),
		nameReport(t, 3, 1, "!"),
		nameReport(t, 3, 0, "!"),
	)
	assert.Equal(t, "new name!!", mergedName(t, merged))
	assert.Len(t, dropped, 2)
}

func TestTable_PassThrough(t *testing.T) {
	table := partial.NewTable(partial.Config{})
	defer table.Close()

	set, err := cc.NewCommand(node, 0, &basic.Set{TargetValue: 1})
	require.NoError(t, err)
	got, done, err := table.Add(set)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Same(t, set, got)

	single := nameReport(t, 9, 0, "Level")
	got, done, err = table.Add(single)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Same(t, single, got)
	assert.Zero(t, table.Count())
}

func TestTable_IndependentKeys(t *testing.T) {
	table := partial.NewTable(partial.Config{})
	defer table.Close()

	a1 := nameReport(t, 1, 1, "Pa")
	b1 := nameReport(t, 2, 1, "Qa")
	other, err := cc.NewCommand(node+1, 0, &configuration.NameReport{Parameter: 1, ReportsToFollow: 1, Name: "Ra"})
	require.NoError(t, err)

	for _, cmd := range []*cc.Command{a1, b1, other} {
		_, done, err := table.Add(cmd)
		require.NoError(t, err)
		require.False(t, done)
	}

	sessions := table.Sessions(node)
	require.Len(t, sessions, 2)
	assert.Equal(t, uint32(1), sessions[0].Key.Discriminator)
	assert.Equal(t, uint32(2), sessions[1].Key.Discriminator)
	assert.Equal(t, 1, sessions[0].Parts)

	merged, done, err := table.Add(nameReport(t, 2, 0, "b"))
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, "Qab", mergedName(t, merged))
	assert.Equal(t, 2, table.Count())
}

// TestTable_CountdownIncreaseRestarts checks that a repeated countdown
// replaces the previous part and a higher one starts a fresh session.
func TestTable_CountdownIncreaseRestarts(t *testing.T) {
	var dropped []partial.Key
	table := partial.NewTable(partial.Config{
		LoggerFactory: logging.NewDefaultLoggerFactory(),
		OnAbandoned: func(key partial.Key, err error) {
			assert.ErrorIs(t, err, cc.ErrSessionIncomplete)
			dropped = append(dropped, key)
		},
	})
	defer table.Close()

	merged := feed(t, table,
		nameReport(t, 4, 2, "stale"),
		nameReport(t, 4, 1, "-"),
		nameReport(t, 4, 1, "ab"),
		nameReport(t, 4, 0, "cd"),
	)
	assert.Equal(t, "staleabcd", mergedName(t, merged))

	merged = feed(t, table,
		nameReport(t, 4, 1, "old"),
		nameReport(t, 4, 2, "ne"),
		nameReport(t, 4, 1, "w "),
		nameReport(t, 4, 0, "name"),
	)
	assert.Equal(t, "new name", mergedName(t, merged))
	assert.Equal(t, []partial.Key{{NodeID: node, CommandClass: cc.Configuration, Discriminator: 4}}, dropped)
}

// TestTable_OrderedParts reassembles bulk reports delivered out of order.
func TestTable_OrderedParts(t *testing.T) {
	table := partial.NewTable(partial.Config{})
	defer table.Close()

	merged := feed(t, table,
		bulkReport(t, 5, 1, 50, 60),
		bulkReport(t, 5, 1, 50, 60),
		bulkReport(t, 1, 2, 10, 20),
		bulkReport(t, 3, 0, 30, 40),
	)
	br, ok := merged.Fields.(*configuration.BulkReport)
	require.True(t, ok)
	assert.Equal(t, uint16(1), br.Offset)
	assert.Equal(t, []int64{10, 20, 30, 40, 50, 60}, br.Values)
}

func TestTable_Timeout(t *testing.T) {
	abandoned := make(chan partial.Key, 1)
	errs := make(chan error, 1)
	table := partial.NewTable(partial.Config{
		Timeout: 20 * time.Millisecond,
		OnAbandoned: func(key partial.Key, err error) {
			errs <- err
			abandoned <- key
		},
	})
	defer table.Close()

	_, done, err := table.Add(nameReport(t, 6, 2, "abc"))
	require.NoError(t, err)
	require.False(t, done)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, cc.ErrSessionTimeout)
		key := <-abandoned
		assert.Equal(t, partial.Key{NodeID: node, CommandClass: cc.Configuration, Discriminator: 6}, key)
	case <-time.After(time.Second):
		t.Fatal("session was not abandoned")
	}
	assert.Zero(t, table.Count())

	// A later report reusing the discriminator is not merged with the
	// abandoned parts.
	merged := feed(t, table,
		nameReport(t, 6, 1, "x"),
		nameReport(t, 6, 0, "y"),
	)
	assert.Equal(t, "xy", mergedName(t, merged))
}

func TestTable_RemoveNodeAndClose(t *testing.T) {
	table := partial.NewTable(partial.Config{})

	assoc, err := cc.NewCommand(node, 0, &association.Report{Group: 1, MaxNodes: 5, ReportsToFollow: 1, Nodes: []cc.NodeID{2}})
	require.NoError(t, err)
	_, done, err := table.Add(assoc)
	require.NoError(t, err)
	require.False(t, done)
	_, _, err = table.Add(nameReport(t, 1, 1, "a"))
	require.NoError(t, err)
	require.Equal(t, 2, table.Count())

	table.RemoveNode(node)
	assert.Zero(t, table.Count())
	assert.Empty(t, table.Sessions(node))

	_, _, err = table.Add(nameReport(t, 1, 1, "a"))
	require.NoError(t, err)
	table.Close()
	assert.Zero(t, table.Count())

	merged, done, err := table.Add(nameReport(t, 1, 0, "b"))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, merged)
}

func TestTable_NilCommand(t *testing.T) {
	table := partial.NewTable(partial.Config{})
	defer table.Close()

	_, _, err := table.Add(nil)
	assert.ErrorIs(t, err, cc.ErrInvalidConstruction)
}
