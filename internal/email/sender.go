// Package email provides operator email delivery over SMTP.
package email

import "context"

// Sender delivers operator notifications. Satisfied by SMTPSender and by
// test fakes.
type Sender interface {
	SendOrphanedResourceEmail(ctx context.Context, toEmail, provider, resourceID, phoneNumber, tenantID, releaseError string) error
	SendRevenueEventEmail(ctx context.Context, toEmail, tenantID, callID, feeAmount string) error
}
