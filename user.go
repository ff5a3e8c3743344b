package multisig

import (
	"time"
)

type User struct {
	Address   Address   `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
}
