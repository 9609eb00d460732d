package sync

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/unbxd/feedsync/internal/status"
)

// User-facing run messages
const (
	MessageSuccess       = "Feed was synchronized successfully."
	MessageProcessing    = "Feed was accepted and is still being indexed. Check the status again later."
	MessageUnknown       = "No feed synchronization has been recorded yet."
	MessageNothingToSync = "No records to synchronize."

	errorMessagePrefix  = "Feed synchronization failed for stores "
	storeIDSeparator    = ","
	errorListTerminator = ". "
)

// StatusMessage phrases the user-facing message for a run state.
// For the error state the message lists the affected store IDs followed by each store's error.
func StatusMessage(state status.RunState, storeErrors map[string]string) string {
	switch state {
	case status.RunStateSuccess:
		return MessageSuccess
	case status.RunStateProcessing:
		return MessageProcessing
	case status.RunStateError:
		return ErrorMessage(storeErrors)
	default:
		return MessageUnknown
	}
}

// ErrorMessage concatenates the affected store IDs and their individual messages.
// IDs in the list are query-escaped so ParseAffectedStores can split them back.
func ErrorMessage(storeErrors map[string]string) string {
	ids := slices.Sorted(maps.Keys(storeErrors))

	escaped := make([]string, 0, len(ids))
	for _, id := range ids {
		escaped = append(escaped, url.QueryEscape(id))
	}

	var b strings.Builder
	b.WriteString(errorMessagePrefix)
	b.WriteString(strings.Join(escaped, storeIDSeparator))
	b.WriteString(errorListTerminator)

	details := make([]string, 0, len(ids))
	for _, id := range ids {
		details = append(details, fmt.Sprintf("Store %s: %s", id, storeErrors[id]))
	}
	b.WriteString(strings.Join(details, "\n"))

	return b.String()
}

// ParseAffectedStores recovers the store IDs listed in a message built by ErrorMessage.
// It returns nil for any other message.
func ParseAffectedStores(message string) []string {
	rest, ok := strings.CutPrefix(message, errorMessagePrefix)
	if !ok {
		return nil
	}
	list, _, ok := strings.Cut(rest, errorListTerminator)
	if !ok || list == "" {
		return nil
	}
	ids := strings.Split(list, storeIDSeparator)
	for i, id := range ids {
		if unescaped, err := url.QueryUnescape(id); err == nil {
			ids[i] = unescaped
		}
	}
	return ids
}
