// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

// UserTopic is the per-user notification topic, "user.<userID>".
func UserTopic(userID string) string {
	return "user." + userID
}

// ChatTopic is the per-conversation message topic, "chat.<conversationID>".
func ChatTopic(conversationID string) string {
	return "chat." + conversationID
}
