package queue

import "encoding/json"

// MessageVersion is bumped when the payload shape changes.
const MessageVersion = 1

// Message is a notification handed to the mail delivery consumer.
type Message struct {
	Kind           string `json:"kind"`
	RequestID      string `json:"requestId"`
	DocumentID     string `json:"documentId"`
	DocumentTitle  string `json:"documentTitle,omitempty"`
	To             string `json:"to"`
	ToName         string `json:"toName,omitempty"`
	RequesterEmail string `json:"requesterEmail,omitempty"`
	DownloadURL    string `json:"downloadUrl,omitempty"`
	OccurredAt     string `json:"occurredAt"`
	Version        int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
