package service

import (
	"strconv"

	"arcade/store"
)

// Store key constructors. Every service addresses records through these so
// the keyed layout stays in one place.

func accountKey(guildID, userID int64) store.Key {
	return store.NewKey(store.KindAccount, formatID(guildID), formatID(userID))
}

func guildKey(guildID int64) store.Key {
	return store.NewKey(store.KindGuild, formatID(guildID))
}

func sessionKey(guildID, channelID int64) store.Key {
	return store.NewKey(store.KindSession, formatID(guildID), formatID(channelID))
}

func giveawayKey(guildID, messageID int64) store.Key {
	return store.NewKey(store.KindGiveaway, formatID(guildID), formatID(messageID))
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
