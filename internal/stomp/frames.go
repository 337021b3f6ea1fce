// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package stomp

import "github.com/go-stomp/stomp/v3/frame"

// ContentTypeJSON is the content-type of every JSON body Agora sends.
const ContentTypeJSON = "application/json"

// ConnectOptions configures the CONNECT frame.
type ConnectOptions struct {
	Host      string
	Login     string
	Passcode  string
	HeartBeat HeartBeat
}

// Connect builds the client handshake frame.
func Connect(opts ConnectOptions) *frame.Frame {
	f := frame.New(frame.CONNECT,
		frame.AcceptVersion, Version,
		frame.Host, opts.Host,
		frame.HeartBeat, opts.HeartBeat.String(),
	)
	if opts.Login != "" {
		f.Header.Set(frame.Login, opts.Login)
		f.Header.Set(frame.Passcode, opts.Passcode)
	}
	return f
}

// Connected builds the broker handshake reply.
func Connected(session string, hb HeartBeat) *frame.Frame {
	return frame.New(frame.CONNECTED,
		frame.Version, Version,
		frame.Session, session,
		frame.Server, "agora-broker/"+Version,
		frame.HeartBeat, hb.String(),
	)
}

// Subscribe builds a SUBSCRIBE frame with automatic acknowledgement.
func Subscribe(id, destination string) *frame.Frame {
	return frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, destination,
		frame.Ack, "auto",
	)
}

// Unsubscribe builds an UNSUBSCRIBE frame.
func Unsubscribe(id string) *frame.Frame {
	return frame.New(frame.UNSUBSCRIBE, frame.Id, id)
}

// Send builds a SEND frame.
func Send(destination, contentType string, body []byte) *frame.Frame {
	f := frame.New(frame.SEND, frame.Destination, destination)
	if contentType != "" {
		f.Header.Set(frame.ContentType, contentType)
	}
	f.Body = body
	return f
}

// Message builds a MESSAGE frame delivered to one subscription.
func Message(destination, subscription, messageID, contentType string, body []byte) *frame.Frame {
	f := frame.New(frame.MESSAGE,
		frame.Destination, destination,
		frame.Subscription, subscription,
		frame.MessageId, messageID,
	)
	if contentType != "" {
		f.Header.Set(frame.ContentType, contentType)
	}
	f.Body = body
	return f
}

// Disconnect builds a DISCONNECT frame; receipt may be empty.
func Disconnect(receipt string) *frame.Frame {
	f := frame.New(frame.DISCONNECT)
	if receipt != "" {
		f.Header.Set(frame.Receipt, receipt)
	}
	return f
}

// Receipt builds a RECEIPT frame.
func Receipt(receiptID string) *frame.Frame {
	return frame.New(frame.RECEIPT, frame.ReceiptId, receiptID)
}

// Error builds an ERROR frame with a short message header and detail body.
func Error(message, detail string) *frame.Frame {
	f := frame.New(frame.ERROR, frame.Message, message)
	if detail != "" {
		f.Header.Set(frame.ContentType, "text/plain")
		f.Body = []byte(detail)
	}
	return f
}
