package invitations

import (
	"context"
	"fmt"

	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/db/models"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/security"
	"github.com/google/uuid"
)

const (
	defaultCodeLength  = 10
	defaultMaxAttempts = 50
)

// codeGenerator draws one candidate code.
type codeGenerator func() (string, error)

// GenerateCode draws a fixed-length code from A-Z0-9.
func GenerateCode() (string, error) {
	return security.RandomString(security.InvitationAlphabet, defaultCodeLength)
}

func newCodeGenerator(length int) codeGenerator {
	if length <= 0 {
		length = defaultCodeLength
	}
	return func() (string, error) {
		return security.RandomString(security.InvitationAlphabet, length)
	}
}

// issueCodes persists count fresh unused invitations. Each unit redraws on
// collision, up to maxAttempts draws, and fails loudly past that.
func issueCodes(ctx context.Context, repo *Repository, gen codeGenerator, maxAttempts int, circleID, issuerID uuid.UUID, count int) ([]string, error) {
	if count < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation count cannot be negative")
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := issueOne(ctx, repo, gen, maxAttempts, circleID, issuerID)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func issueOne(ctx context.Context, repo *Repository, gen codeGenerator, maxAttempts int, circleID, issuerID uuid.UUID) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := gen()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invitation code")
		}
		taken, err := repo.CodeExists(ctx, code)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check invitation code")
		}
		if taken {
			continue
		}
		err = repo.Create(ctx, &models.Invitation{
			Code:     code,
			IssuedBy: issuerID,
			CircleID: circleID,
		})
		if err == nil {
			return code, nil
		}
		if db.IsUniqueViolation(err, "invitations_code_key") {
			continue
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert invitation")
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no unique invitation code after %d attempts", maxAttempts))
}
