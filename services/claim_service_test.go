package services

import (
	"testing"
	"time"

	"connect-chain-system/models"

	"github.com/stretchr/testify/require"
)

// three-member chain: creator (root) -> alice -> bob, 100 credits escrowed
func setupChainWithClaimants(t *testing.T) (*testEnv, *models.ConnectRequest, *models.Chain) {
	t.Helper()
	env := newTestEnv(t)
	env.fund(t, "creator", 100)
	req := env.createRequest(t, "creator", 100, time.Hour)

	alice := "alice"
	_, err := env.chains.Join(req.ID, alice, nil)
	require.NoError(t, err)
	_, err = env.chains.Join(req.ID, "bob", &alice)
	require.NoError(t, err)

	chain, err := env.chains.Get(req.ID)
	require.NoError(t, err)
	return env, req, chain
}

func submitClaim(t *testing.T, env *testEnv, requestID, claimantID string) *models.TargetClaim {
	t.Helper()
	claim, err := env.claims.Submit(SubmitClaimInput{
		RequestID:   requestID,
		ClaimantID:  claimantID,
		TargetName:  "Jane Target",
		TargetEmail: "jane@acme.example",
		Note:        "met her at the conference",
	})
	require.NoError(t, err)
	return claim
}

func TestSubmitClaim(t *testing.T) {
	env, req, chain := setupChainWithClaimants(t)

	claim := submitClaim(t, env, req.ID, "bob")
	require.Equal(t, models.ClaimStatusPending, claim.Status)
	require.Equal(t, chain.ID, claim.ChainID)
}

func TestSubmitRequiresContact(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)

	_, err := env.claims.Submit(SubmitClaimInput{
		RequestID:  req.ID,
		ClaimantID: "bob",
		Note:       "trust me",
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubmitRejectsNonMembers(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)

	_, err := env.claims.Submit(SubmitClaimInput{
		RequestID:  req.ID,
		ClaimantID: "outsider",
		TargetName: "Jane Target",
	})
	require.ErrorIs(t, err, ErrNotAMember)
}

func TestSubmitDuplicatePendingClaim(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)

	claim := submitClaim(t, env, req.ID, "bob")
	_, err := env.claims.Submit(SubmitClaimInput{
		RequestID:  req.ID,
		ClaimantID: "bob",
		TargetName: "Jane Target",
	})
	require.ErrorIs(t, err, ErrDuplicatePendingClaim)

	// rejection frees the slot for a fresh attempt
	_, err = env.claims.Reject(claim.ID, "creator", "wrong person")
	require.NoError(t, err)
	submitClaim(t, env, req.ID, "bob")
}

func TestSubmitOnInactiveRequest(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	_, err := env.requests.Cancel(req.ID, "creator")
	require.NoError(t, err)

	_, err = env.claims.Submit(SubmitClaimInput{
		RequestID:  req.ID,
		ClaimantID: "bob",
		TargetName: "Jane Target",
	})
	require.ErrorIs(t, err, ErrRequestInactive)
}

func TestApproveDistributesRewards(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	claim := submitClaim(t, env, req.ID, "bob")

	chain, err := env.claims.Approve(claim.ID, "creator")
	require.NoError(t, err)
	require.Equal(t, models.ChainStatusCompleted, chain.Status)
	require.NotNil(t, chain.CompletedAt)

	// 100 over 3 members: 33 each, remainder 1 to the root
	require.Len(t, chain.Participants, 3)
	var paid int64
	for _, p := range chain.Participants {
		require.NotNil(t, p.RewardAmount)
		paid += *p.RewardAmount
	}
	require.Equal(t, int64(100), paid)

	require.Equal(t, int64(34), env.balance(t, "creator"))
	require.Equal(t, int64(33), env.balance(t, "alice"))
	require.Equal(t, int64(33), env.balance(t, "bob"))

	for _, user := range []string{"creator", "alice", "bob"} {
		logSum, cached, err := env.ledger.Reconcile(user)
		require.NoError(t, err)
		require.Equal(t, logSum, cached)
	}

	got, err := env.requests.Get(req.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusCompleted, got.Status)

	var stored models.TargetClaim
	require.NoError(t, env.db.First(&stored, "id = ?", claim.ID).Error)
	require.Equal(t, models.ClaimStatusApproved, stored.Status)
	require.NotNil(t, stored.ReviewedBy)
	require.Equal(t, "creator", *stored.ReviewedBy)
}

func TestApproveRejectsOtherPendingClaims(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	aliceClaim := submitClaim(t, env, req.ID, "alice")
	bobClaim := submitClaim(t, env, req.ID, "bob")

	_, err := env.claims.Approve(bobClaim.ID, "creator")
	require.NoError(t, err)

	var loser models.TargetClaim
	require.NoError(t, env.db.First(&loser, "id = ?", aliceClaim.ID).Error)
	require.Equal(t, models.ClaimStatusRejected, loser.Status)
	require.Equal(t, "another claim was approved", loser.RejectionReason)
}

func TestSecondApproveAlreadyResolved(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	aliceClaim := submitClaim(t, env, req.ID, "alice")
	bobClaim := submitClaim(t, env, req.ID, "bob")

	_, err := env.claims.Approve(bobClaim.ID, "creator")
	require.NoError(t, err)
	_, err = env.claims.Approve(aliceClaim.ID, "creator")
	require.ErrorIs(t, err, ErrAlreadyResolved)

	// exactly one round of payouts
	var payouts int64
	require.NoError(t, env.db.Model(&models.CreditTransaction{}).
		Where("source = ?", models.SourceRewardPayout).
		Count(&payouts).Error)
	require.Equal(t, int64(3), payouts)
}

func TestApproveCreatorOnly(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	claim := submitClaim(t, env, req.ID, "bob")

	_, err := env.claims.Approve(claim.ID, "alice")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.claims.Approve("missing-claim", "creator")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApproveOnExpiredRequest(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	claim := submitClaim(t, env, req.ID, "bob")

	require.NoError(t, env.db.Model(&models.ConnectRequest{}).
		Where("id = ?", req.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err := env.claims.Approve(claim.ID, "creator")
	require.ErrorIs(t, err, ErrRequestInactive)
}

func TestRejectClaim(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	claim := submitClaim(t, env, req.ID, "bob")

	_, err := env.claims.Reject(claim.ID, "alice", "nope")
	require.ErrorIs(t, err, ErrUnauthorized)

	out, err := env.claims.Reject(claim.ID, "creator", "could not verify")
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusRejected, out.Status)
	require.Equal(t, "could not verify", out.RejectionReason)

	_, err = env.claims.Reject(claim.ID, "creator", "again")
	require.ErrorIs(t, err, ErrAlreadyResolved)

	// rejection leaves the request open
	got, err := env.requests.Get(req.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusActive, got.Status)
}

func TestDistributeIsIdempotent(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	claim := submitClaim(t, env, req.ID, "bob")
	chain, err := env.claims.Approve(claim.ID, "creator")
	require.NoError(t, err)

	again, err := env.claims.Distribute(chain.ID)
	require.NoError(t, err)
	require.Equal(t, models.ChainStatusCompleted, again.Status)
	require.Len(t, again.Participants, 3)

	var payouts int64
	require.NoError(t, env.db.Model(&models.CreditTransaction{}).
		Where("source = ?", models.SourceRewardPayout).
		Count(&payouts).Error)
	require.Equal(t, int64(3), payouts)
}

func TestDistributeFailedChainRejected(t *testing.T) {
	env, req, chain := setupChainWithClaimants(t)
	_, err := env.requests.Cancel(req.ID, "creator")
	require.NoError(t, err)

	_, err = env.claims.Distribute(chain.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestRemainderGoesToRoot(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "creator", 7)
	req := env.createRequest(t, "creator", 7, time.Hour)
	_, err := env.chains.Join(req.ID, "alice", nil)
	require.NoError(t, err)

	claim := submitClaim(t, env, req.ID, "alice")
	chain, err := env.claims.Approve(claim.ID, "creator")
	require.NoError(t, err)

	// 7 over 2: 3 each, remainder 1 to the root
	require.Equal(t, int64(4), env.balance(t, "creator"))
	require.Equal(t, int64(3), env.balance(t, "alice"))

	var paid int64
	for _, p := range chain.Participants {
		paid += *p.RewardAmount
	}
	require.Equal(t, int64(7), paid)
}

func TestListByRequestCreatorOnly(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	submitClaim(t, env, req.ID, "alice")
	submitClaim(t, env, req.ID, "bob")

	claims, err := env.claims.ListByRequest(req.ID, "creator")
	require.NoError(t, err)
	require.Len(t, claims, 2)

	_, err = env.claims.ListByRequest(req.ID, "alice")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAttachEvidence(t *testing.T) {
	env, req, _ := setupChainWithClaimants(t)
	claim := submitClaim(t, env, req.ID, "bob")

	_, err := env.claims.AttachEvidence(claim.ID, "alice", "https://cdn.example/evidence/1.png")
	require.ErrorIs(t, err, ErrUnauthorized)

	out, err := env.claims.AttachEvidence(claim.ID, "bob", "https://cdn.example/evidence/1.png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/evidence/1.png", out.EvidenceURL)

	_, err = env.claims.Approve(claim.ID, "creator")
	require.NoError(t, err)
	_, err = env.claims.AttachEvidence(claim.ID, "bob", "https://cdn.example/evidence/2.png")
	require.ErrorIs(t, err, ErrAlreadyResolved)
}
