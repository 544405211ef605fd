package tipping

import "math/big"

const feeDenominator = 10_000

// splitFee divides a gross tip into platform fee and post-fee remainder.
// fee + afterFee == amount always holds; floor division rounds the fee down.
func splitFee(amount *big.Int, feeBps uint32) (fee *big.Int, afterFee *big.Int) {
	if amount == nil || amount.Sign() <= 0 || feeBps == 0 {
		return big.NewInt(0), newBigInt(amount)
	}
	fee = new(big.Int).Mul(amount, big.NewInt(int64(feeBps)))
	fee = fee.Div(fee, big.NewInt(feeDenominator))
	afterFee = new(big.Int).Sub(amount, fee)
	return fee, afterFee
}

// splitShares divides the post-fee amount between collaborator and creator.
// collabShare + creatorShare == afterFee always holds; floor division rounds
// the collaborator share down.
func splitShares(afterFee *big.Int, percent uint8) (collabShare *big.Int, creatorShare *big.Int) {
	if afterFee == nil || afterFee.Sign() <= 0 || percent == 0 {
		return big.NewInt(0), newBigInt(afterFee)
	}
	collabShare = new(big.Int).Mul(afterFee, big.NewInt(int64(percent)))
	collabShare = collabShare.Div(collabShare, big.NewInt(100))
	creatorShare = new(big.Int).Sub(afterFee, collabShare)
	return collabShare, creatorShare
}
