// Package itn normalizes raw gateway notification payloads into typed
// DonationNotification values.
package itn

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldMap declares which gateway form field feeds each domain attribute.
// The gateway's field naming drifted across integrations, so the mapping is
// configuration rather than code.
type FieldMap struct {
	Email       string `yaml:"email"`
	FirstName   string `yaml:"firstName"`
	Biome       string `yaml:"biome"`
	Amount      string `yaml:"amount"`
	Token       string `yaml:"token"`
	FriendName  string `yaml:"friendName"`
	FriendEmail string `yaml:"friendEmail"`
	BillingDate string `yaml:"billingDate"`
	Points      string `yaml:"points"`
	PaymentID   string `yaml:"paymentId"`
}

// DefaultFieldMap returns the canonical mapping for the PayFast ITN layout.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Email:       "email_address",
		FirstName:   "name_first",
		Biome:       "custom_str3",
		Amount:      "amount_gross",
		Token:       "token",
		FriendName:  "custom_str1",
		FriendEmail: "custom_str2",
		BillingDate: "billing_date",
		Points:      "custom_int1",
		PaymentID:   "pf_payment_id",
	}
}

// LoadFieldMap reads a YAML override file on top of the default mapping.
// Keys absent from the file keep their defaults.
func LoadFieldMap(path string) (FieldMap, error) {
	fields := DefaultFieldMap()
	data, err := os.ReadFile(path)
	if err != nil {
		return fields, fmt.Errorf("failed to read field map: %w", err)
	}
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return fields, fmt.Errorf("failed to parse field map: %w", err)
	}
	return fields, nil
}
