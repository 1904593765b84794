package models

import (
	"log"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Patient{}, &Wound{}, &Scan{},
		&SyncQueueEntry{},
		&ScanEventRecord{}, &IdempotencyKey{},
		&Alert{}, &AuditRecord{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
