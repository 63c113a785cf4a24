// Package services implements the notification pipeline and its
// collaborators: resolver, aggregator, recorder and grant evaluator.
package services

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/BiomeFund/biomebridge-go/cms"
	"github.com/BiomeFund/biomebridge-go/itn"
	"github.com/BiomeFund/biomebridge-go/models"
	"github.com/BiomeFund/biomebridge-go/store"
	"github.com/BiomeFund/biomebridge-go/utils"
)

// State tracks how far a notification got through the pipeline.
type State int

const (
	StateReceived State = iota
	StateNormalized
	StateUserResolved
	StateProfileAggregated
	StateBiomeAggregated
	StateDonationRecorded
	StateGiftRecorded
	StateGrantsEvaluated
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "Received"
	case StateNormalized:
		return "Normalized"
	case StateUserResolved:
		return "UserResolved"
	case StateProfileAggregated:
		return "ProfileAggregated"
	case StateBiomeAggregated:
		return "BiomeAggregated"
	case StateDonationRecorded:
		return "DonationRecorded"
	case StateGiftRecorded:
		return "GiftRecorded"
	case StateGrantsEvaluated:
		return "GrantsEvaluated"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// ReceiptSender delivers a post-completion receipt. Delivery failures never
// fail the pipeline.
type ReceiptSender interface {
	SendDonationReceipt(email string, amount float64, biome string) error
}

// Result reports what one notification produced.
type Result struct {
	State         State                        `json:"state"`
	Duplicate     bool                         `json:"duplicate"`
	Notification  *models.DonationNotification `json:"notification,omitempty"`
	UserID        int                          `json:"userId,omitempty"`
	UserCreated   bool                         `json:"userCreated,omitempty"`
	ProfileID     int                          `json:"profileId,omitempty"`
	BiomeID       int                          `json:"biomeId,omitempty"`
	DonationID    int                          `json:"donationId,omitempty"`
	GiftID        int                          `json:"giftId,omitempty"`
	GrantedCards  []int                        `json:"grantedCards,omitempty"`
	AmountDonated float64                      `json:"amountDonated,omitempty"`
	TotalPoints   int                          `json:"totalPoints,omitempty"`
}

// Stats is a snapshot of the pipeline's counters.
type Stats struct {
	Processed  uint64 `json:"processed"`
	Duplicates uint64 `json:"duplicates"`
	Failed     uint64 `json:"failed"`
}

// PipelineOptions configures the optional collaborators.
type PipelineOptions struct {
	// CreateMissingBiomes selects the biome policy: auto-create when true,
	// reject with UnknownBiome when false.
	CreateMissingBiomes bool
	// Ledger, when set, short-circuits replays before any backend call.
	Ledger *store.Ledger
	// Notify, when set, receives an activity event after each completion.
	Notify func(models.Activity)
	// Receipts, when set, is invoked best-effort after each completion.
	Receipts ReceiptSender
}

// Pipeline orchestrates one inbound notification through normalize, resolve,
// accumulate, record and grant. Steps are strictly sequential; any failure
// is terminal for the request and already-applied writes stay in place. The
// gateway redelivers on failure, and the find-or-create resolvers plus the
// payment-id dedup make a full replay safe. A redelivery after a failure
// between DonationRecorded and GrantsEvaluated resumes the remaining steps;
// a retry that failed before the Donation was recorded can still
// double-count profile totals, see Aggregator.
type Pipeline struct {
	normalizer *itn.Normalizer
	resolver   *Resolver
	aggregator *Aggregator
	recorder   *Recorder
	grants     *GrantEvaluator
	opts       PipelineOptions

	processed  atomic.Uint64
	duplicates atomic.Uint64
	failed     atomic.Uint64
}

func NewPipeline(backend *cms.Client, normalizer *itn.Normalizer, opts PipelineOptions) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		resolver:   NewResolver(backend),
		aggregator: NewAggregator(backend),
		recorder:   NewRecorder(backend),
		grants:     NewGrantEvaluator(backend),
		opts:       opts,
	}
}

// Process runs one raw webhook payload through the pipeline. On failure the
// returned error is a *PipelineError carrying the kind and the state
// reached.
func (p *Pipeline) Process(ctx context.Context, raw map[string]string) (*Result, error) {
	result := &Result{State: StateReceived}

	n, err := p.normalizer.Normalize(raw)
	if err != nil {
		return result, p.fail(result, KindMissingIdentity, err)
	}
	result.State = StateNormalized
	result.Notification = n

	if n.PaymentID != "" {
		if p.opts.Ledger != nil {
			seen, err := p.opts.Ledger.Seen(ctx, n.PaymentID)
			if err != nil {
				log.Printf("ERROR: Ledger lookup failed for %s: %v", n.PaymentID, err)
			} else if seen {
				p.duplicates.Add(1)
				result.Duplicate = true
				log.Printf("Duplicate notification %s for %s, skipping", n.PaymentID, n.Email)
				return result, nil
			}
		}

		recorded, err := p.recorder.FindByPaymentID(ctx, n.PaymentID)
		if err != nil {
			return result, p.fail(result, KindBackend, err)
		}
		if recorded {
			// The donation exists but the ledger never confirmed completion:
			// the first delivery may have died between DonationRecorded and
			// GrantsEvaluated. Re-run the idempotent tail before declaring
			// the replay a duplicate.
			result.Duplicate = true
			log.Printf("Duplicate notification %s for %s, resuming incomplete steps", n.PaymentID, n.Email)
			if err := p.resume(ctx, result, n); err != nil {
				return result, p.fail(result, KindBackend, err)
			}
			p.duplicates.Add(1)
			p.markLedger(ctx, n)
			return result, nil
		}
	}

	user, existed, err := p.resolver.ResolveUser(ctx, n)
	if err != nil {
		return result, p.fail(result, KindBackend, err)
	}
	result.State = StateUserResolved
	result.UserID = user.ID
	result.UserCreated = !existed

	profile, _, err := p.resolver.ResolveProfile(ctx, user.ID)
	if err != nil {
		return result, p.fail(result, KindBackend, err)
	}
	profile, err = p.aggregator.AccumulateProfile(ctx, profile, n)
	if err != nil {
		return result, p.fail(result, KindBackend, err)
	}
	result.State = StateProfileAggregated
	result.ProfileID = profile.ID
	result.AmountDonated = profile.AmountDonated
	result.TotalPoints = profile.TotalPoints

	biome, _, err := p.resolver.ResolveBiome(ctx, n.BiomeName, p.opts.CreateMissingBiomes)
	if err != nil {
		if errors.Is(err, ErrUnknownBiome) {
			return result, p.fail(result, KindUnknownBiome, err)
		}
		return result, p.fail(result, KindBackend, err)
	}
	if _, err := p.aggregator.AccumulateBiome(ctx, biome, n.AmountGross); err != nil {
		return result, p.fail(result, KindBackend, err)
	}
	result.State = StateBiomeAggregated
	result.BiomeID = biome.ID

	donationID, err := p.recorder.RecordDonation(ctx, profile.ID, biome.ID, n)
	if err != nil {
		return result, p.fail(result, KindBackend, err)
	}
	result.State = StateDonationRecorded
	result.DonationID = donationID

	if n.IsGift() {
		giftID, err := p.recorder.RecordGift(ctx, profile.ID, biome.ID, n)
		if err != nil {
			return result, p.fail(result, KindBackend, err)
		}
		result.State = StateGiftRecorded
		result.GiftID = giftID
	}

	granted, err := p.grants.EvaluateGrants(ctx, user.ID, profile.TotalPoints)
	if err != nil {
		return result, p.fail(result, KindBackend, err)
	}
	result.State = StateGrantsEvaluated
	result.GrantedCards = granted

	p.markLedger(ctx, n)

	result.State = StateCompleted
	p.processed.Add(1)
	p.announce(n)
	return result, nil
}

// resume re-runs the steps after DonationRecorded that a failed first
// delivery may have skipped. Every step here is idempotent: the gift create
// is keyed by payment id and grant evaluation is a diff against existing
// grants. Aggregation is never re-run; the Donation record proves it already
// applied.
func (p *Pipeline) resume(ctx context.Context, result *Result, n *models.DonationNotification) error {
	user, _, err := p.resolver.ResolveUser(ctx, n)
	if err != nil {
		return err
	}
	result.UserID = user.ID

	profile, _, err := p.resolver.ResolveProfile(ctx, user.ID)
	if err != nil {
		return err
	}
	result.ProfileID = profile.ID
	result.AmountDonated = profile.AmountDonated
	result.TotalPoints = profile.TotalPoints

	if n.IsGift() {
		giftID, found, err := p.recorder.FindGiftByPaymentID(ctx, n.PaymentID)
		if err != nil {
			return err
		}
		if !found {
			// The biome must exist: the donation was recorded after biome
			// aggregation.
			biome, _, err := p.resolver.ResolveBiome(ctx, n.BiomeName, false)
			if err != nil {
				return err
			}
			giftID, err = p.recorder.RecordGift(ctx, profile.ID, biome.ID, n)
			if err != nil {
				return err
			}
		}
		result.GiftID = giftID
	}

	granted, err := p.grants.EvaluateGrants(ctx, user.ID, profile.TotalPoints)
	if err != nil {
		return err
	}
	result.GrantedCards = granted
	return nil
}

func (p *Pipeline) markLedger(ctx context.Context, n *models.DonationNotification) {
	if p.opts.Ledger == nil || n.PaymentID == "" {
		return
	}
	if err := p.opts.Ledger.Mark(ctx, n); err != nil {
		log.Printf("ERROR: Failed to mark ledger for %s: %v", n.PaymentID, err)
	}
}

func (p *Pipeline) announce(n *models.DonationNotification) {
	if p.opts.Notify != nil {
		p.opts.Notify(models.Activity{
			ID:        utils.GenerateULID(),
			Email:     n.Email,
			Amount:    n.AmountGross,
			Biome:     n.BiomeName,
			Gift:      n.IsGift(),
			Timestamp: time.Now().UTC(),
		})
	}
	if p.opts.Receipts != nil {
		if err := p.opts.Receipts.SendDonationReceipt(n.Email, n.AmountGross, n.BiomeName); err != nil {
			log.Printf("ERROR: Failed to send receipt to %s: %v", n.Email, err)
		}
	}
}

func (p *Pipeline) fail(result *Result, kind ErrorKind, err error) error {
	p.failed.Add(1)
	return &PipelineError{Kind: kind, State: result.State, Err: err}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:  p.processed.Load(),
		Duplicates: p.duplicates.Load(),
		Failed:     p.failed.Load(),
	}
}
