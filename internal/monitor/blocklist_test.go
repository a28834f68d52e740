package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlocklistMatching(t *testing.T) {
	t.Parallel()

	b := NewBlocklist([]string{"www.olx.pl", "*.kufar.by", ".realt.by", "  "})

	require.True(t, b.IsBlocked("www.olx.pl"))
	require.True(t, b.IsBlocked("WWW.OLX.PL"))
	require.False(t, b.IsBlocked("olx.pl"))

	require.True(t, b.IsBlocked("re.kufar.by"))
	require.True(t, b.IsBlocked("kufar.by"))
	require.True(t, b.IsBlocked("auto.realt.by"))
	require.False(t, b.IsBlocked("notkufar.by"))
	require.False(t, b.IsBlocked(""))
}

func TestBlocklistAddRemove(t *testing.T) {
	t.Parallel()

	b := NewBlocklist(nil)
	require.False(t, b.IsBlocked("www.olx.pl"))

	b.Add("www.olx.pl")
	b.Add("*.kufar.by")
	require.True(t, b.IsBlocked("www.olx.pl"))
	require.True(t, b.IsBlocked("re.kufar.by"))
	require.ElementsMatch(t, []string{"www.olx.pl", "*.kufar.by"}, b.Patterns())

	b.Remove("www.olx.pl")
	b.Remove("*.kufar.by")
	require.False(t, b.IsBlocked("www.olx.pl"))
	require.False(t, b.IsBlocked("re.kufar.by"))
	require.Empty(t, b.Patterns())
}

func TestNilBlocklistBlocksNothing(t *testing.T) {
	t.Parallel()

	var b *Blocklist
	require.False(t, b.IsBlocked("www.olx.pl"))
}
