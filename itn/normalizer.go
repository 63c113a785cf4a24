package itn

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/BiomeFund/biomebridge-go/models"
)

// ErrMissingEmail is returned when the payload carries no usable email
// address after entity decoding. The pipeline rejects such notifications
// before any backend call.
var ErrMissingEmail = errors.New("notification has no email address")

// billingDateFormats are tried in order when parsing the billing date.
var billingDateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Normalizer decodes a raw form-field map into a DonationNotification.
type Normalizer struct {
	Fields FieldMap

	// Now is swappable for tests.
	Now func() time.Time
}

func NewNormalizer(fields FieldMap) *Normalizer {
	return &Normalizer{Fields: fields, Now: time.Now}
}

// Normalize extracts a typed, defaulted notification from the raw key/value
// payload. The gateway entity-encodes reserved characters, so every value is
// HTML-entity decoded before being interpreted as a number, date or
// identifier.
func (z *Normalizer) Normalize(raw map[string]string) (*models.DonationNotification, error) {
	n := &models.DonationNotification{
		Email:        z.text(raw, z.Fields.Email),
		FirstName:    z.text(raw, z.Fields.FirstName),
		BiomeName:    z.text(raw, z.Fields.Biome),
		GatewayToken: z.text(raw, z.Fields.Token),
		FriendName:   z.text(raw, z.Fields.FriendName),
		FriendEmail:  z.text(raw, z.Fields.FriendEmail),
		PaymentID:    z.text(raw, z.Fields.PaymentID),
	}

	if n.Email == "" {
		return nil, ErrMissingEmail
	}

	n.AmountGross = parseAmount(z.text(raw, z.Fields.Amount))
	n.PointsEarned = parsePoints(z.text(raw, z.Fields.Points))

	billingDate, explicit := z.parseBillingDate(z.text(raw, z.Fields.BillingDate))
	n.BillingDate = billingDate

	if n.PaymentID == "" {
		// A key fabricated from receipt time would make two legitimate
		// same-day donations collide and split a redelivery across midnight.
		// Without both the transaction id and an explicit billing date the
		// notification is processed without dedup.
		if explicit {
			n.PaymentID = derivePaymentID(n)
		} else {
			log.Printf("Notification for %s has no transaction id or billing date; processing without dedup", n.Email)
		}
	}

	return n, nil
}

func (z *Normalizer) text(raw map[string]string, key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(raw[key]))
}

func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil || amount < 0 {
		return 0
	}
	return amount
}

func parsePoints(s string) int {
	if s == "" {
		return 0
	}
	points, err := strconv.Atoi(s)
	if err != nil || points < 0 {
		return 0
	}
	return points
}

// parseBillingDate reports whether the payload carried a parseable date;
// otherwise the receipt time is used and the date cannot anchor a dedup key.
func (z *Normalizer) parseBillingDate(s string) (time.Time, bool) {
	for _, format := range billingDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return z.Now().UTC(), false
}

// derivePaymentID builds a stable dedup key from explicit payload fields
// when the gateway omits its transaction id. Redelivery of the same
// notification yields the same key.
func derivePaymentID(n *models.DonationNotification) string {
	seed := fmt.Sprintf("%s|%.2f|%s|%s|%s",
		n.Email, n.AmountGross, n.BillingDate.Format("2006-01-02"), n.GatewayToken, n.BiomeName)
	sum := sha256.Sum256([]byte(seed))
	return "drv_" + hex.EncodeToString(sum[:16])
}
