package bot

import (
	"fmt"
	"strings"
	"time"
)

// FormatBalance formats a coin amount with thousand separators
func FormatBalance(balance int64) string {
	str := fmt.Sprintf("%d", balance)

	negative := strings.HasPrefix(str, "-")
	if negative {
		str = str[1:]
	}

	n := len(str)
	if n > 3 {
		var result strings.Builder
		for i, digit := range str {
			if i > 0 && (n-i)%3 == 0 {
				result.WriteRune(',')
			}
			result.WriteRune(digit)
		}
		str = result.String()
	}

	if negative {
		return "-" + str
	}
	return str
}

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays in user's local timezone
// Format types: "t" = short time, "T" = long time, "d" = short date, "D" = long date,
// "f" = short date/time, "F" = long date/time, "R" = relative time
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

// formatDuration renders a duration like "23h 59m" or "45s". Sub-minute
// durations keep seconds, anything longer drops them.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	seconds := int(d % time.Minute / time.Second)

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0 && seconds > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// mention renders a user mention from an int64 ID.
func mention(userID int64) string {
	return fmt.Sprintf("<@%d>", userID)
}

// mentionList joins user mentions with commas.
func mentionList(userIDs []int64) string {
	mentions := make([]string, len(userIDs))
	for i, id := range userIDs {
		mentions[i] = mention(id)
	}
	return strings.Join(mentions, ", ")
}

// channelMention renders a channel mention from an int64 ID.
func channelMention(channelID int64) string {
	return fmt.Sprintf("<#%d>", channelID)
}

// roleMention renders a role mention from an int64 ID.
func roleMention(roleID int64) string {
	return fmt.Sprintf("<@&%d>", roleID)
}
