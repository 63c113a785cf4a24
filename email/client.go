// Package email provides email client functionality
package email

import (
	"fmt"
	"os"

	"github.com/BiomeFund/biomebridge-go/email/templates"
	"github.com/resendlabs/resend-go"
)

type Client struct {
	resend    *resend.Client
	fromEmail string
	fromName  string
}

func NewClient() (*Client, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	fromEmail := os.Getenv("RECEIPT_EMAIL_FROM")
	if fromEmail == "" {
		fromEmail = "donations@yourdomain.com"
	}

	fromName := os.Getenv("RECEIPT_EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "BiomeBridge"
	}

	client := resend.NewClient(apiKey)

	return &Client{
		resend:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendDonationReceipt emails a thank-you receipt for a processed donation.
func (c *Client) SendDonationReceipt(email string, amount float64, biome string) error {
	content := templates.GetReceiptEmailContent(templates.ReceiptEmailProps{
		Amount: amount,
		Biome:  biome,
	})

	htmlContent := templates.GetEmailLayout(templates.EmailLayoutProps{
		Content: content,
	})

	request := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{email},
		Subject: "Thank you for your donation",
		Html:    htmlContent,
	}

	if _, err := c.resend.Emails.Send(request); err != nil {
		return fmt.Errorf("failed to send receipt email: %w", err)
	}
	return nil
}
