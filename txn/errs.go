package txn

import "errors"

var (
	ErrCommitFailed = errors.New("commit failed")
	ErrRollbackOnly = errors.New("transaction marked rollback only")
	ErrDone         = errors.New("transaction already finished")
)
