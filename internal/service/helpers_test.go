package service

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/model"
)

const testSecret = "test-service-secret"

func testConfig() config.Config {
	return config.Config{
		ServiceJWTSecret: testSecret,
		InviteTTL:        time.Hour,
		BcryptCost:       bcrypt.MinCost,
		FirstLoginMode:   config.FirstLoginInvite,
		OTPTTL:           10 * time.Minute,
		Currency:         "XOF",
		Phone:            config.PhoneConfig{CountryCode: "221", LocalLength: 9},
	}
}

func activeFront() *model.FrontConfig {
	return &model.FrontConfig{ID: 1, Name: "web", BaseURL: "https://pay.example.sn/", PaymentPath: "/facture", Active: true, AutoSendReminders: true}
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func ptr[T any](v T) *T { return &v }
