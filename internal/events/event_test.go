package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Run("aggregate event", func(t *testing.T) {
		ev, ok := Parse([]byte(`{"type":"contribution_added","item_id":"X","reserved_total":200,"contributors_count":1}`))
		assert.True(t, ok)
		assert.Equal(t, ContributionAdded, ev.Type)
		assert.Equal(t, "X", ev.ItemID)
		assert.Equal(t, int64(200), ev.ReservedTotal)
		assert.Equal(t, 1, ev.ContributorsCount)
		assert.True(t, ev.CarriesAggregate())
	})

	t.Run("lifecycle event", func(t *testing.T) {
		ev, ok := Parse([]byte(`{"type":"item_deleted","item_id":"X"}`))
		assert.True(t, ok)
		assert.True(t, ev.IsLifecycle())
		assert.False(t, ev.CarriesAggregate())
	})

	t.Run("explicit zero totals are accepted", func(t *testing.T) {
		ev, ok := Parse([]byte(`{"type":"item_reserved","item_id":"X","reserved_total":0,"contributors_count":0}`))
		assert.True(t, ok)
		assert.Zero(t, ev.ReservedTotal)
		assert.Zero(t, ev.ContributorsCount)
	})

	t.Run("pong needs no item", func(t *testing.T) {
		ev, ok := Parse([]byte(`{"type":"pong"}`))
		assert.True(t, ok)
		assert.Equal(t, Pong, ev.Type)
	})

	t.Run("unknown type is still structurally valid", func(t *testing.T) {
		ev, ok := Parse([]byte(`{"type":"item_renamed","item_id":"X"}`))
		assert.True(t, ok)
		assert.Equal(t, Type("item_renamed"), ev.Type)
	})

	t.Run("malformed frames", func(t *testing.T) {
		for _, raw := range []string{
			"pong",
			"",
			"{",
			`{"item_id":"X"}`,
			`{"type":"item_reserved"}`,
			`{"type":"item_reserved","item_id":"X","reserved_total":-5,"contributors_count":1}`,
			`{"type":"item_reserved","item_id":"X"}`,
			`{"type":"item_reserved","item_id":"X","reserved_total":500}`,
			`{"type":"contribution_added","item_id":"X","reserved_total":200}`,
			`{"type":"contribution_added","item_id":"X","contributors_count":1}`,
			`{"type":"contribution_added","item_id":"X","reserved_total":200,"contributors_count":-1}`,
		} {
			_, ok := Parse([]byte(raw))
			assert.False(t, ok, raw)
		}
	})
}

func TestEncode(t *testing.T) {
	data, err := Encode(ItemState(ItemReserved, "X", 500, 2))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"item_reserved","item_id":"X","reserved_total":500,"contributors_count":2}`, string(data))

	data, err = Encode(ItemState(ContributionAdded, "X", 0, 0))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"contribution_added","item_id":"X","reserved_total":0,"contributors_count":0}`, string(data))

	data, err = Encode(Lifecycle(ItemCreated, "Y"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"item_created","item_id":"Y"}`, string(data))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "wishlist:abc:events", Channel("wishlist", "abc"))
	assert.Equal(t, "wishlist:*:events", ChannelPattern("wishlist"))

	id, ok := WishlistFromChannel("wishlist", "wishlist:abc:events")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	for _, bad := range []string{"other:abc:events", "wishlist:abc", "wishlist::events", "wishlist:a:b:events"} {
		_, ok := WishlistFromChannel("wishlist", bad)
		assert.False(t, ok, bad)
	}
}
