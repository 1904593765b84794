package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
)

func TestUserPassword_HashedRoundTrip(t *testing.T) {
	hashed, err := utils.HashPassword("W0undc@re")
	if err != nil {
		t.Fatal(err)
	}

	user := User{Username: "nurse1", Password: string(hashed)}
	if err := utils.ComparePassword(user.Password, "W0undc@re"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if err := utils.ComparePassword(user.Password, "wrong"); err == nil {
		t.Fatal("wrong password must not verify")
	}
}

func TestUserPrepareGive_StripsPassword(t *testing.T) {
	user := User{Username: "nurse1", Password: "secret"}
	user.PrepareGive()
	if user.Password != "" {
		t.Fatal("password must be cleared before returning the user")
	}
}
