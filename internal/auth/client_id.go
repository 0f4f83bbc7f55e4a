package auth

import "github.com/google/uuid"

func parseClientID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}
