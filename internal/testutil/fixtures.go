package testutil

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const JWTSecret = "test-secret"

// NewReport returns a valid, unsaved report owned by ownerID.
func NewReport(ownerID uuid.UUID, title string) models.Report {
	return models.Report{
		ID:          uuid.New(),
		UserID:      ownerID,
		Title:       title,
		Description: "Reported near the bus stop",
		Category:    models.CategoryPothole,
		Address:     "12 Main Street",
		Longitude:   29.0,
		Latitude:    41.0,
		Images:      []string{},
		Status:      models.StatusSubmitted,
	}
}

// SignToken issues an access token the way AuthService does, signed with
// JWTSecret.
func SignToken(userID uuid.UUID, email, role string) string {
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"role":  role,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(JWTSecret))
	if err != nil {
		panic(err)
	}
	return signed
}
