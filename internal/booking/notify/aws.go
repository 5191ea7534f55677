package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/sns"
)

// SMSPublisher is satisfied by *sns.SNS.
type SMSPublisher interface {
	PublishWithContext(ctx aws.Context, input *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error)
}

// SMS sends text messages through AWS SNS.
type SMS struct {
	client   SMSPublisher
	senderID string
}

// NewSMS wraps an SNS client.
func NewSMS(client SMSPublisher, senderID string) *SMS {
	return &SMS{client: client, senderID: senderID}
}

func (s *SMS) Name() string { return "sms" }

// Send texts the notification body to the contact's phone.
func (s *SMS) Send(ctx context.Context, c Contact, n Notification) error {
	if c.Phone == "" {
		return nil
	}
	in := &sns.PublishInput{
		PhoneNumber: aws.String(c.Phone),
		Message:     aws.String(fmt.Sprintf("%s: %s", n.Title, n.Body)),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	}
	if s.senderID != "" {
		in.MessageAttributes["AWS.SNS.SMS.SenderID"] = &sns.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	_, err := s.client.PublishWithContext(ctx, in)
	return err
}

// EmailSender is satisfied by *ses.SES.
type EmailSender interface {
	SendEmailWithContext(ctx aws.Context, input *ses.SendEmailInput, opts ...request.Option) (*ses.SendEmailOutput, error)
}

// Email sends plain text e-mails through AWS SES.
type Email struct {
	client EmailSender
	from   string
}

// NewEmail wraps an SES client.
func NewEmail(client EmailSender, from string) *Email {
	return &Email{client: client, from: from}
}

func (e *Email) Name() string { return "email" }

// Send mails the notification to the contact.
func (e *Email) Send(ctx context.Context, c Contact, n Notification) error {
	if c.Email == "" || e.from == "" {
		return nil
	}
	_, err := e.client.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Source:      aws.String(e.from),
		Destination: &ses.Destination{ToAddresses: []*string{aws.String(c.Email)}},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(n.Title)},
			Body: &ses.Body{
				Text: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(n.Body)},
			},
		},
	})
	return err
}
