// Package notification turns qualifying release feed entries into
// user-facing notifications.
package notification

import (
	"github.com/nickromney-org/release-notifier/internal/feed"
	"github.com/nickromney-org/release-notifier/internal/version"
	"github.com/nickromney-org/release-notifier/pkg/types"
)

// ToNotification copies id, name, published_at and body_html field for field.
// A missing or mistyped field fails with *types.DecodeError.
func ToNotification(record feed.ReleaseRecord) (types.Notification, error) {
	id, err := record.Int(feed.FieldID)
	if err != nil {
		return types.Notification{}, err
	}
	name, err := record.String(feed.FieldName)
	if err != nil {
		return types.Notification{}, err
	}
	date, err := record.String(feed.FieldPublishedAt)
	if err != nil {
		return types.Notification{}, err
	}
	content, err := record.String(feed.FieldBodyHTML)
	if err != nil {
		return types.Notification{}, err
	}

	return types.Notification{
		ID:      id,
		Name:    name,
		Date:    date,
		Content: content,
	}, nil
}

// Map keeps the records whose tag is newer than the filter's reference and
// converts them, preserving feed order. The first conversion error aborts.
func Map(records []feed.ReleaseRecord, filter *version.Filter) ([]types.Notification, error) {
	notifications := make([]types.Notification, 0)
	for _, record := range records {
		if !filter.Keep(record.TagName()) {
			continue
		}

		n, err := ToNotification(record)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// CountUnseen counts notifications whose id is not archived
func CountUnseen(notifications []types.Notification, archived map[int64]struct{}) int {
	count := 0
	for _, n := range notifications {
		if _, ok := archived[n.ID]; !ok {
			count++
		}
	}
	return count
}
