package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireWoundLock serializes trend recomputation and replay per wound across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the recompute transaction.
func AcquireWoundLock(tx *gorm.DB, woundId string) error {
	lockName := fmt.Sprintf("wound:%s", woundId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire wound lock for wound_id=%s", woundId)
	}
	return nil
}

func ReleaseWoundLock(tx *gorm.DB, woundId string) {
	lockName := fmt.Sprintf("wound:%s", woundId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
