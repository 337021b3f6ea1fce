// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package broker

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// StampMessage gives a JSON object body the fields an authoritative chat
// message carries: a server "id" and "createdAt", unless already present.
// Other fields, tempId included, are kept so the sender can reconcile its
// optimistic copy. Bodies that are not JSON objects are returned unchanged.
func StampMessage(body []byte, now time.Time) []byte {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return body
	}
	if _, ok := obj["id"]; !ok {
		obj["id"] = uuid.NewString()
	}
	if _, ok := obj["createdAt"]; !ok {
		obj["createdAt"] = now.UTC().Format(time.RFC3339Nano)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return body
	}
	return out
}
