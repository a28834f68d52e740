package grouper

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
)

func task(id int64, url string) monitor.WatchTask {
	return monitor.WatchTask{ID: id, URL: url, Active: true}
}

func TestGroupCollapsesEquivalentQueries(t *testing.T) {
	t.Parallel()

	g := New(nil, zap.NewNop())
	groups := g.Group([]monitor.WatchTask{
		task(1, "https://www.olx.pl/wynajem/warszawa/?a=1&b=2"),
		task(2, "https://WWW.OLX.PL/wynajem/warszawa?b=2&a=1&utm_source=tg"),
		task(3, "https://www.olx.pl/wynajem/krakow/"),
	})

	require.Len(t, groups, 2)
	require.Len(t, groups[0].Tasks, 2)
	require.Equal(t, int64(1), groups[0].Tasks[0].ID)
	require.Equal(t, int64(2), groups[0].Tasks[1].ID)
	require.Len(t, groups[1].Tasks, 1)
	require.Equal(t, int64(3), groups[1].Tasks[0].ID)
}

func TestGroupNeverProducesEmptyGroups(t *testing.T) {
	t.Parallel()

	g := New(nil, zap.NewNop())
	groups := g.Group([]monitor.WatchTask{
		task(1, "://not-a-url"),
		{ID: 2, URL: "https://www.olx.pl/wynajem/lodz/", Active: false},
	})
	require.Empty(t, groups)

	for _, group := range g.Group([]monitor.WatchTask{task(3, "https://www.olx.pl/wynajem/lodz/")}) {
		require.NotEmpty(t, group.Tasks)
	}
}

func TestGroupSkipsBlockedSources(t *testing.T) {
	t.Parallel()

	blocklist := monitor.NewBlocklist([]string{"www.olx.pl"})
	g := New(blocklist, zap.NewNop())

	groups := g.Group([]monitor.WatchTask{
		task(1, "https://www.olx.pl/wynajem/warszawa/"),
		task(2, "https://re.kufar.by/l/minsk/snyat/kvartiru"),
	})

	require.Len(t, groups, 1)
	require.Equal(t, "re.kufar.by", groups[0].Query.Host)
}

func TestGroupIsDeterministic(t *testing.T) {
	t.Parallel()

	g := New(nil, zap.NewNop())
	in := []monitor.WatchTask{
		task(1, "https://www.olx.pl/wynajem/warszawa/"),
		task(2, "https://www.olx.pl/wynajem/krakow/"),
		task(3, "https://www.olx.pl/wynajem/warszawa/"),
	}

	first := g.Group(in)
	second := g.Group(in)
	require.Equal(t, first, second)
}
