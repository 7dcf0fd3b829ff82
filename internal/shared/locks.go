package shared

import "fmt"

// UpstreamLockKey builds the lock key serialising submits that consume the same upstream document.
func UpstreamLockKey(kind, documentID string) string {
	return fmt.Sprintf("chain:upstream:%s:%s:lock", kind, documentID)
}

// SubmissionKey builds the key of a draft's submission guard state.
func SubmissionKey(draftKey string) string {
	return fmt.Sprintf("submission:%s", draftKey)
}

// WarkatLockKey serialises settlement actions on one payment entry.
func WarkatLockKey(paymentID string) string {
	return fmt.Sprintf("warkat:%s:lock", paymentID)
}
