// Package models defines the domain types shared across the pipeline.
package models

import "time"

// DonationNotification is the typed, defaulted view of one inbound ITN
// payload after entity decoding. PaymentID is the dedup key for the whole
// pipeline: the gateway's transaction id when present, otherwise derived
// deterministically from the payload.
type DonationNotification struct {
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	BiomeName    string    `json:"biomeName"`
	AmountGross  float64   `json:"amountGross"`
	GatewayToken string    `json:"gatewayToken"`
	FriendName   string    `json:"friendName"`
	FriendEmail  string    `json:"friendEmail"`
	BillingDate  time.Time `json:"billingDate"`
	PointsEarned int       `json:"pointsEarned"`
	PaymentID    string    `json:"paymentId"`
}

// IsGift reports whether the notification carries both friend fields and
// should produce a GiftDonation alongside the Donation.
func (n *DonationNotification) IsGift() bool {
	return n.FriendName != "" && n.FriendEmail != ""
}

// User is the backend's user entity, keyed by email.
type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// UserProfile carries the per-user lifetime aggregates. AmountDonated and
// TotalPoints are monotonically non-decreasing; Token, FriendName,
// FriendEmail and BillingDate hold the most recent notification's values.
type UserProfile struct {
	ID            int     `json:"id"`
	AmountDonated float64 `json:"amountDonated"`
	TotalPoints   int     `json:"totalPoints"`
	Token         string  `json:"token"`
	FriendName    string  `json:"friendName"`
	FriendEmail   string  `json:"friendEmail"`
	BillingDate   string  `json:"billingDate"`
	User          int     `json:"user"`
}

// Biome is a named donation category, keyed by case-insensitive trimmed name.
type Biome struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TotalDonated float64 `json:"totalDonated"`
}

// Donation is the immutable record of one processed notification.
type Donation struct {
	ID           int     `json:"id"`
	Amount       float64 `json:"amount"`
	DonationDate string  `json:"donationDate"`
	UserProfile  int     `json:"userProfile"`
	Biome        int     `json:"biome"`
	PaymentID    string  `json:"paymentId"`
}

// GiftDonation mirrors Donation plus the friend the donation was made for.
// It carries the same payment id as its Donation so a redelivery can tell
// whether the gift record was already written.
type GiftDonation struct {
	ID           int     `json:"id"`
	Amount       float64 `json:"amount"`
	DonationDate string  `json:"donationDate"`
	UserProfile  int     `json:"userProfile"`
	Biome        int     `json:"biome"`
	FriendName   string  `json:"friendName"`
	FriendEmail  string  `json:"friendEmail"`
	PaymentID    string  `json:"paymentId"`
}

// Card is a loyalty tier definition, read-only from this system's side.
type Card struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	PointsRequired int    `json:"pointsRequired"`
}

// CardsCollected links a user to an earned card. At most one per (user, card).
type CardsCollected struct {
	ID   int `json:"id"`
	User int `json:"user"`
	Card int `json:"card"`
}

// Activity is the event broadcast over the websocket feed after a
// notification completes.
type Activity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Amount    float64   `json:"amount"`
	Biome     string    `json:"biome"`
	Gift      bool      `json:"gift"`
	Timestamp time.Time `json:"timestamp"`
}
