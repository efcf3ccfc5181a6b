package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/leadvault/internal/lead"
)

func TestBadger_LegacyStringEntries(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadger(t.TempDir(), "myLeads")
	require.NoError(t, err)
	defer b.Close()

	// Older versions stored bare links.
	require.NoError(t, b.SetRaw([]byte(`["acme.com", {"url":"globex.io","starred":true}, null, 12]`)))

	raws, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 4)
	assert.Equal(t, lead.RawLegacyURL, raws[0].Kind)
	assert.Equal(t, lead.RawRecord, raws[1].Kind)
	assert.Equal(t, lead.RawInvalid, raws[2].Kind)

	leads := normalized(t, raws)
	require.Len(t, leads, 2)
	assert.Equal(t, "https://acme.com", leads[0].URL)
	assert.True(t, leads[1].Starred)
}

func TestBadger_CorruptValueIsEmpty(t *testing.T) {
	b, err := OpenBadger(t.TempDir(), "myLeads")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.SetRaw([]byte(`{not json`)))

	raws, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestBadger_KeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()

	b, err := OpenBadger(home, "teamA")
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, sampleLeads()))
	require.NoError(t, b.Close())

	other, err := OpenBadger(home, "teamB")
	require.NoError(t, err)
	defer other.Close()

	raws, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestBadger_CancelledContext(t *testing.T) {
	b, err := OpenBadger(t.TempDir(), "")
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Load(ctx)
	assert.Error(t, err)
	assert.Error(t, b.Save(ctx, nil))
}
