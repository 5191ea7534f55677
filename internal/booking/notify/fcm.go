package notify

import (
	"context"

	"firebase.google.com/go/messaging"
)

// MessageSender is satisfied by *messaging.Client.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM delivers push notifications through Firebase Cloud Messaging.
type FCM struct {
	client MessageSender
}

// NewFCM wraps a messaging client.
func NewFCM(client MessageSender) *FCM {
	return &FCM{client: client}
}

func (f *FCM) Name() string { return "fcm" }

// Send pushes n to the contact's device token.
func (f *FCM) Send(ctx context.Context, c Contact, n Notification) error {
	if c.FCMToken == "" {
		return nil
	}
	_, err := f.client.Send(ctx, buildMessage(c.FCMToken, n))
	return err
}

func buildMessage(token string, n Notification) *messaging.Message {
	data := map[string]string{
		"event":  n.Event,
		"job_id": n.JobID,
	}
	for k, v := range n.Data {
		data[k] = v
	}
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "jobs_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: n.Title,
						Body:  n.Body,
					},
					Sound: "default",
				},
			},
		},
	}
}
