package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"consentwindow/internal/consent/models"
	id "consentwindow/pkg/domain"
)

func TestPublishConsentGiven_RequiresTransaction(t *testing.T) {
	start := time.Unix(1000, 0).UTC()
	err := NewPublisher().PublishConsentGiven(context.Background(), models.ConsentGiven{
		Owner:         id.OwnerID(uuid.New()),
		StartsAt:      start,
		HoursToExpire: 3,
		ExpiresAt:     start.Add(3 * time.Hour),
	})
	assert.ErrorIs(t, err, errNoTransaction)
}
