package services

import (
	"context"
	"fmt"

	"github.com/BiomeFund/biomebridge-go/cms"
	"github.com/BiomeFund/biomebridge-go/models"
)

// Recorder creates the immutable donation records. RecordDonation is not
// idempotent by itself; the pipeline checks the payment id before calling
// it.
type Recorder struct {
	backend *cms.Client
}

func NewRecorder(backend *cms.Client) *Recorder {
	return &Recorder{backend: backend}
}

// RecordDonation creates exactly one Donation linking profile and biome. The
// gateway payment id is stored with the record so a replayed notification is
// detectable from the backend alone.
func (r *Recorder) RecordDonation(ctx context.Context, profileID, biomeID int, n *models.DonationNotification) (int, error) {
	attrs := map[string]any{
		"amount":       n.AmountGross,
		"donationDate": n.BillingDate.Format(dateFormat),
		"userProfile":  profileID,
		"biome":        biomeID,
		"paymentId":    n.PaymentID,
	}
	var donation models.Donation
	if err := r.backend.Create(ctx, "donations", attrs, &donation); err != nil {
		return 0, fmt.Errorf("donation create failed: %w", err)
	}
	return donation.ID, nil
}

// RecordGift creates one GiftDonation carrying the friend the donation was
// made for. The payment id is stored alongside so FindGiftByPaymentID can
// tell a redelivery whether this step already ran.
func (r *Recorder) RecordGift(ctx context.Context, profileID, biomeID int, n *models.DonationNotification) (int, error) {
	attrs := map[string]any{
		"amount":       n.AmountGross,
		"donationDate": n.BillingDate.Format(dateFormat),
		"userProfile":  profileID,
		"biome":        biomeID,
		"friendName":   n.FriendName,
		"friendEmail":  n.FriendEmail,
		"paymentId":    n.PaymentID,
	}
	var gift models.GiftDonation
	if err := r.backend.Create(ctx, "gift-donations", attrs, &gift); err != nil {
		return 0, fmt.Errorf("gift donation create failed: %w", err)
	}
	return gift.ID, nil
}

// FindByPaymentID reports whether a Donation for the payment id already
// exists. This is the durable half of the dedup check.
func (r *Recorder) FindByPaymentID(ctx context.Context, paymentID string) (bool, error) {
	var donation models.Donation
	found, err := r.backend.FindFirst(ctx, "donations", "paymentId", "$eq", paymentID, &donation)
	if err != nil {
		return false, fmt.Errorf("donation lookup failed: %w", err)
	}
	return found, nil
}

// FindGiftByPaymentID looks up the GiftDonation written for the payment id,
// if any.
func (r *Recorder) FindGiftByPaymentID(ctx context.Context, paymentID string) (int, bool, error) {
	var gift models.GiftDonation
	found, err := r.backend.FindFirst(ctx, "gift-donations", "paymentId", "$eq", paymentID, &gift)
	if err != nil {
		return 0, false, fmt.Errorf("gift donation lookup failed: %w", err)
	}
	return gift.ID, found, nil
}
