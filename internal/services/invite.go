// Invitation codes and deep links.
//
// Codes are wire-visible tokens of the literal shape BRIDGE-DDDDD. Uniqueness
// among active managers is guarded twice: a direct probe at generation time
// and the partial unique index on the managers table as the final arbiter.
package services

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/repo"
)

// codeAttempts bounds the generation loop; with a 90k keyspace and small
// fleets this never triggers in practice.
const codeAttempts = 10

var codeRE = regexp.MustCompile(`^BRIDGE-\d{5}$`)

// ValidInvitationCode reports whether a code has the wire shape
// BRIDGE-DDDDD.
func ValidInvitationCode(code string) bool {
	return codeRE.MatchString(code)
}

// GenerateInvitationCode picks a random five-digit suffix and probes it
// against active managers, retrying on collision a bounded number of times.
func GenerateInvitationCode(ctx context.Context, db *gorm.DB) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := fmt.Sprintf("BRIDGE-%05d", 10000+rand.Intn(90000))
		taken, err := repo.CodeExists(ctx, db, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeCollision
}

// InviteLink builds the deep link that binds its redeemer to the code's
// manager on the receiving bot's slot.
func InviteLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=invite_%s", botUsername, code)
}
