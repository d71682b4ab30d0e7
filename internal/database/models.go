package database

// Collection names under orgs/{orgId}. These paths are read by external
// consumers and must stay stable.
const (
	OrgsCollection     = "orgs"
	LocksCollection    = "verticalBuildLocks"
	ReceiptsCollection = "verticalBuildReceipts"
	TransitionsSubpath = "transitions"
)

// LockPath addresses the build lock for one (organization, vertical) pair.
func LockPath(orgID, verticalKey string) string {
	return Path(OrgsCollection, orgID, LocksCollection, verticalKey)
}

// ReceiptPath addresses the receipt for one job.
func ReceiptPath(orgID, jobID string) string {
	return Path(OrgsCollection, orgID, ReceiptsCollection, jobID)
}

// TransitionPath addresses one status transition recorded under a receipt.
func TransitionPath(orgID, jobID, transitionID string) string {
	return Path(ReceiptPath(orgID, jobID), TransitionsSubpath, transitionID)
}
