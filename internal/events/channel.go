package events

import (
	"fmt"
	"strings"
)

const channelSuffix = ":events"

// Channel is the pub/sub channel carrying a wishlist's events.
func Channel(prefix, wishlistID string) string {
	return fmt.Sprintf("%s:%s%s", prefix, wishlistID, channelSuffix)
}

// ChannelPattern matches the event channels of every wishlist.
func ChannelPattern(prefix string) string {
	return prefix + ":*" + channelSuffix
}

// WishlistFromChannel extracts the wishlist id from a channel name built
// by Channel.
func WishlistFromChannel(prefix, channel string) (string, bool) {
	rest, ok := strings.CutPrefix(channel, prefix+":")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, channelSuffix)
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}
